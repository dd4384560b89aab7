package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/minivisionary/creditwallet/app/models"
)

// accountRepository implements the AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository instance
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// Create creates a new account in the database
func (r *accountRepository) Create(account *models.Account) error {
	return r.db.Create(account).Error
}

// GetByID retrieves an account by its ID
func (r *accountRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	err := r.db.First(&account, id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByEmail retrieves an account by its email address
func (r *accountRepository) GetByEmail(email string) (*models.Account, error) {
	var account models.Account
	err := r.db.Where("email = ?", strings.TrimSpace(strings.ToLower(email))).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Update persists changes to an account
func (r *accountRepository) Update(account *models.Account) error {
	return r.db.Save(account).Error
}

// Count returns the total number of accounts
func (r *accountRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Account{}).Count(&count).Error
	return count, err
}
