package repository

import (
	"gorm.io/gorm"

	"github.com/minivisionary/creditwallet/app/models"
)

// AccountRepository defines the interface for account-related database operations
type AccountRepository interface {
	Create(account *models.Account) error
	GetByID(id uint) (*models.Account, error)
	GetByEmail(email string) (*models.Account, error)
	Update(account *models.Account) error
	Count() (int64, error)
}

// PosterRepository defines the interface for poster-related database operations
type PosterRepository interface {
	Create(poster *models.Poster) error
	GetByID(id uint) (*models.Poster, error)
	GetByAccountID(accountID uint, offset, limit int) ([]models.Poster, error)
	Update(poster *models.Poster) error
	GetPublicPosters(offset, limit int) ([]models.Poster, error)
	CountByAccountID(accountID uint) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Account AccountRepository
	Poster  PosterRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Account: NewAccountRepository(db),
		Poster:  NewPosterRepository(db),
	}
}
