package billing

import (
	"errors"
	"time"

	"github.com/minivisionary/creditwallet/app/models"
	"github.com/minivisionary/creditwallet/internal/pkg/wallet"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tx is the set of mutations an event may apply. All of them run inside the
// same database transaction as the event dedup insert, so the insert and the
// resulting balance/subscription change commit or roll back as one unit.
type Tx interface {
	GrantCredits(accountID uint, amount int, eventType, reference, notes string) (int, error)
	SetAdFree(accountID uint, active bool) error
	LinkCustomer(accountID uint, customerID string) error
}

// ApplyFunc applies a freshly deduplicated event's effect.
type ApplyFunc func(tx Tx) error

// Repository provides DB operations used by the reconciler service.
type Repository interface {
	// ProcessEventOnce atomically check-and-inserts the event record and,
	// when the id was unseen, runs apply in the same transaction and marks
	// the event processed. Returns false without calling apply when the
	// event id was already recorded (idempotent no-op). An apply error
	// rolls back everything including the dedup insert.
	ProcessEventOnce(event *models.WebhookEvent, apply ApplyFunc) (bool, error)
	// EventSeen reports whether the event id is already recorded. Read-only
	// fast path so redeliveries skip account and line-item resolution; the
	// check-and-insert in ProcessEventOnce stays authoritative.
	EventSeen(provider, providerEventID string) (bool, error)
	AccountByID(id uint) (*models.Account, error)
	AccountByCustomerRef(customerID string) (*models.Account, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ProcessEventOnce(event *models.WebhookEvent, apply ApplyFunc) (bool, error) {
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "provider"},
				{Name: "provider_event_id"},
			},
			DoNothing: true,
		}).Create(event)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Duplicate delivery; the first one already applied the effect.
			return nil
		}
		created = true

		if apply != nil {
			if err := apply(&gormTx{tx: tx}); err != nil {
				return err
			}
		}

		now := time.Now()
		return tx.Model(&models.WebhookEvent{}).
			Where("id = ?", event.ID).
			Update("processed_at", &now).Error
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *gormRepository) EventSeen(provider, providerEventID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.WebhookEvent{}).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRepository) AccountByID(id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnresolvedAccount
		}
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) AccountByCustomerRef(customerID string) (*models.Account, error) {
	if customerID == "" {
		return nil, ErrUnresolvedAccount
	}
	var account models.Account
	err := r.db.Where("stripe_customer_id = ?", customerID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnresolvedAccount
		}
		return nil, err
	}
	return &account, nil
}

type gormTx struct {
	tx *gorm.DB
}

func (t *gormTx) GrantCredits(accountID uint, amount int, eventType, reference, notes string) (int, error) {
	if amount <= 0 {
		return 0, wallet.ErrInvalidAmount
	}
	return wallet.ApplyBalanceMutation(t.tx, accountID, func(current int) (int, *models.CreditLedgerEntry, error) {
		return current + amount, &models.CreditLedgerEntry{
			EventType: eventType,
			Amount:    amount,
			Reference: reference,
			Notes:     notes,
		}, nil
	})
}

func (t *gormTx) SetAdFree(accountID uint, active bool) error {
	return t.tx.Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("ad_free", active).Error
}

func (t *gormTx) LinkCustomer(accountID uint, customerID string) error {
	if customerID == "" {
		return nil
	}
	// Set once; an already-linked account keeps its original reference.
	return t.tx.Model(&models.Account{}).
		Where("id = ? AND (stripe_customer_id IS NULL OR stripe_customer_id = '')", accountID).
		Update("stripe_customer_id", customerID).Error
}
