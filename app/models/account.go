package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	STATUS_ACTIVE   = "active"
	STATUS_DISABLED = "disabled"
)

// Account is a user account with its spendable credit balance. The balance is
// the authoritative value and is mutated only through the wallet service; the
// credit ledger is the audit trail, and balance == SUM(credit_ledger.amount)
// holds for every account.
type Account struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Email            string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	PasswordHash     string         `gorm:"type:text" json:"-" validate:"required"`
	DisplayName      string         `gorm:"type:varchar(100)" json:"display_name" validate:"max=100"`
	Balance          int            `gorm:"not null;default:0" json:"balance"`
	AdFree           bool           `gorm:"not null;default:false" json:"ad_free"`
	StripeCustomerID string         `gorm:"type:varchar(255);default:null;index" json:"-"`
	Status           string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active disabled"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Account) Validate() error {
	v := validator.New()

	return v.Struct(a)
}

// CreateAccount builds a new active account with a hashed password and zero
// balance. The signup bonus is granted through the wallet service afterwards
// so that the ledger stays consistent with the balance.
func CreateAccount(email, displayName, password string) (*Account, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	a := &Account{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: pw,
		Status:       STATUS_ACTIVE,
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}
