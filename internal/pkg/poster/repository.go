package poster

import (
	"gorm.io/gorm"

	"github.com/minivisionary/creditwallet/app/models"
)

// Repository loads and saves posters for background processing.
type Repository interface {
	Get(id uint) (*models.Poster, error)
	Save(poster *models.Poster) error
	// MarkFailed transitions a poster to failed and reports whether this
	// call performed the transition. A poster already in a terminal state
	// is left untouched, which keeps the refund at most once.
	MarkFailed(id uint, message string) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a GORM-backed poster repository
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Get(id uint) (*models.Poster, error) {
	var poster models.Poster
	if err := r.db.First(&poster, id).Error; err != nil {
		return nil, err
	}
	return &poster, nil
}

func (r *gormRepository) Save(poster *models.Poster) error {
	return r.db.Save(poster).Error
}

func (r *gormRepository) MarkFailed(id uint, message string) (bool, error) {
	result := r.db.Model(&models.Poster{}).
		Where("id = ? AND status IN ?", id, []string{models.PosterStatusPending, models.PosterStatusProcessing}).
		Updates(map[string]interface{}{
			"status":        models.PosterStatusFailed,
			"error_message": message,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
