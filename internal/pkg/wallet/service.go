package wallet

import (
	"context"

	"github.com/minivisionary/creditwallet/app/models"
	"gorm.io/gorm"
)

// Service is the public wallet operation surface. All mutating operations
// are serialized per account by the repository and enforce non-negativity at
// the operation boundary; each success appends exactly one ledger entry in
// the same atomic unit as the balance write.
type Service struct {
	repo Repository
}

// NewService creates a wallet service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a wallet service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Grant adds credits to an account and appends a ledger entry tagged with
// eventType (grant, purchase or bonus). Returns the new balance.
func (s *Service) Grant(ctx context.Context, accountID uint, amount int, eventType, reference, notes string) (int, error) {
	_ = ctx
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	// Spend and refund entries come from their own operations; letting them
	// in here would mislabel the ledger.
	if !models.IsCreditEvent(eventType) ||
		eventType == models.CreditEventSpend || eventType == models.CreditEventRefund {
		return 0, ErrInvalidEventType
	}

	return s.repo.UpdateBalance(accountID, func(current int) (int, *models.CreditLedgerEntry, error) {
		return current + amount, &models.CreditLedgerEntry{
			EventType: eventType,
			Amount:    amount,
			Reference: reference,
			Notes:     notes,
		}, nil
	})
}

// Spend deducts credits from an account. Fails closed with
// ErrInsufficientBalance when the balance does not cover the amount: the
// balance is left unchanged and no ledger entry is written.
func (s *Service) Spend(ctx context.Context, accountID uint, amount int, reference, notes string) (int, error) {
	_ = ctx
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	return s.repo.UpdateBalance(accountID, func(current int) (int, *models.CreditLedgerEntry, error) {
		if current < amount {
			return 0, nil, ErrInsufficientBalance
		}
		return current - amount, &models.CreditLedgerEntry{
			EventType: models.CreditEventSpend,
			Amount:    -amount,
			Reference: reference,
			Notes:     notes,
		}, nil
	})
}

// Refund adds credits back after a failed costed action. Callers pass the
// same reference as the original spend so the two entries pair up in the
// ledger.
func (s *Service) Refund(ctx context.Context, accountID uint, amount int, reference, notes string) (int, error) {
	_ = ctx
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	return s.repo.UpdateBalance(accountID, func(current int) (int, *models.CreditLedgerEntry, error) {
		return current + amount, &models.CreditLedgerEntry{
			EventType: models.CreditEventRefund,
			Amount:    amount,
			Reference: reference,
			Notes:     notes,
		}, nil
	})
}

// Balance returns the current balance for an account.
func (s *Service) Balance(ctx context.Context, accountID uint) (int, error) {
	_ = ctx
	return s.repo.GetBalance(accountID)
}

// Receipts returns the most recent purchase ledger entries for an account.
func (s *Service) Receipts(ctx context.Context, accountID uint, limit int) ([]models.CreditLedgerEntry, error) {
	_ = ctx
	if limit <= 0 {
		limit = 10
	}
	return s.repo.RecentEntries(accountID, models.CreditEventPurchase, limit)
}
