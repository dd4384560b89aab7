package wallet

import (
	"errors"

	"github.com/minivisionary/creditwallet/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceMutation computes the outcome of one wallet operation given the
// current balance. It returns the new balance and the ledger entry to
// append; returning an error aborts the operation with no state change.
// The mutation runs while the account row is exclusively locked, so no other
// mutation on the same account can interleave between read and write.
type BalanceMutation func(current int) (next int, entry *models.CreditLedgerEntry, err error)

// Repository provides DB operations used by the wallet service.
type Repository interface {
	GetBalance(accountID uint) (int, error)
	// UpdateBalance runs mutate as a single serialized unit of work on one
	// account: read balance, mutate, write balance, append ledger entry.
	UpdateBalance(accountID uint, mutate BalanceMutation) (int, error)
	RecentEntries(accountID uint, eventType string, limit int) ([]models.CreditLedgerEntry, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a wallet repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetBalance(accountID uint) (int, error) {
	var account models.Account
	if err := r.db.Select("id", "balance").First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return account.Balance, nil
}

func (r *gormRepository) UpdateBalance(accountID uint, mutate BalanceMutation) (int, error) {
	var newBalance int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		newBalance, txErr = ApplyBalanceMutation(tx, accountID, mutate)
		return txErr
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *gormRepository) RecentEntries(accountID uint, eventType string, limit int) ([]models.CreditLedgerEntry, error) {
	var entries []models.CreditLedgerEntry
	q := r.db.Where("account_id = ?", accountID)
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	err := q.Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// ApplyBalanceMutation executes one balance mutation inside an already-open
// transaction. The account row is locked with SELECT ... FOR UPDATE for the
// duration of the read-validate-write-append sequence; the caller's commit
// releases the lock. Exported so the webhook reconciler can apply a grant
// atomically with its event dedup insert.
func ApplyBalanceMutation(tx *gorm.DB, accountID uint, mutate BalanceMutation) (int, error) {
	var account models.Account
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}

	next, entry, err := mutate(account.Balance)
	if err != nil {
		return 0, err
	}

	if err := tx.Model(&models.Account{}).Where("id = ?", accountID).
		Update("balance", next).Error; err != nil {
		return 0, err
	}

	if entry != nil {
		entry.AccountID = accountID
		entry.BalanceAfter = next
		if err := tx.Create(entry).Error; err != nil {
			return 0, err
		}
	}

	return next, nil
}
