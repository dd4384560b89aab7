package repository

import (
	"gorm.io/gorm"

	"github.com/minivisionary/creditwallet/app/models"
)

// posterRepository implements the PosterRepository interface
type posterRepository struct {
	db *gorm.DB
}

// NewPosterRepository creates a new poster repository instance
func NewPosterRepository(db *gorm.DB) PosterRepository {
	return &posterRepository{db: db}
}

// Create creates a new poster in the database
func (r *posterRepository) Create(poster *models.Poster) error {
	return r.db.Create(poster).Error
}

// GetByID retrieves a poster by its ID
func (r *posterRepository) GetByID(id uint) (*models.Poster, error) {
	var poster models.Poster
	err := r.db.First(&poster, id).Error
	if err != nil {
		return nil, err
	}
	return &poster, nil
}

// GetByAccountID retrieves posters owned by an account, newest first
func (r *posterRepository) GetByAccountID(accountID uint, offset, limit int) ([]models.Poster, error) {
	var posters []models.Poster
	err := r.db.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&posters).Error
	return posters, err
}

// Update persists changes to a poster
func (r *posterRepository) Update(poster *models.Poster) error {
	return r.db.Save(poster).Error
}

// GetPublicPosters retrieves published posters for the gallery, newest first
func (r *posterRepository) GetPublicPosters(offset, limit int) ([]models.Poster, error) {
	var posters []models.Poster
	err := r.db.Where("is_public = ? AND status = ?", true, models.PosterStatusCompleted).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&posters).Error
	return posters, err
}

// CountByAccountID returns the number of posters owned by an account
func (r *posterRepository) CountByAccountID(accountID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Poster{}).Where("account_id = ?", accountID).Count(&count).Error
	return count, err
}
