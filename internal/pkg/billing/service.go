package billing

import (
	"context"
	"fmt"

	"github.com/minivisionary/creditwallet/app/models"
	"gorm.io/gorm"
)

// LineItemSource resolves a checkout session's line items when the webhook
// payload does not embed them. Resolution happens before the dedup
// transaction is opened, so no network I/O runs while locks are held.
type LineItemSource interface {
	CheckoutLineItems(ctx context.Context, sessionID string) ([]LineItem, error)
}

// Service reconciles provider webhook events into wallet grants and
// subscription-state transitions, applying each distinct event id exactly
// once.
type Service struct {
	repo      Repository
	catalog   *Catalog
	lineItems LineItemSource
}

// NewService creates a reconciler from an injected repository, catalog and
// optional line-item source.
func NewService(repo Repository, catalog *Catalog, lineItems LineItemSource) *Service {
	return &Service{repo: repo, catalog: catalog, lineItems: lineItems}
}

// NewServiceFromDB creates a reconciler from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, catalog *Catalog, lineItems LineItemSource) *Service {
	return NewService(NewRepository(db), catalog, lineItems)
}

// Outcome describes the effect of processing one webhook delivery.
type Outcome struct {
	EventID        string
	Duplicate      bool
	Ignored        bool
	AccountID      uint
	CreditsGranted int
	NewBalance     int
}

// ProcessEvent verifies nothing; callers must have checked the signature
// already. It parses the payload, resolves the target account and credit
// amount, and commits the dedup insert plus the mapped effect as one atomic
// unit. A duplicate event id is a successful no-op.
func (s *Service) ProcessEvent(ctx context.Context, raw []byte) (*Outcome, error) {
	event, err := ParseEvent(raw)
	if err != nil {
		return nil, err
	}

	// Redeliveries of an already applied event must ack even when the
	// account reference can no longer be resolved, so the duplicate check
	// runs before any resolution work.
	seen, err := s.repo.EventSeen(models.BillingProviderStripe, event.ID)
	if err != nil {
		return nil, err
	}
	if seen {
		return &Outcome{EventID: event.ID, Duplicate: true}, nil
	}

	record := &models.WebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     string(raw),
		SignatureValid:  true,
	}
	outcome := &Outcome{EventID: event.ID}

	var apply ApplyFunc
	switch event.Type {
	case EventCheckoutCompleted:
		apply, err = s.checkoutApply(ctx, event, outcome)
		if err != nil {
			return nil, err
		}
	case EventInvoicePaid:
		// Subscription renewal. The first invoice of some flows also lands
		// here; setting the flag again is harmless.
		account, err := s.repo.AccountByCustomerRef(event.CustomerID)
		if err != nil {
			return nil, err
		}
		outcome.AccountID = account.ID
		apply = func(tx Tx) error {
			return tx.SetAdFree(account.ID, true)
		}
	case EventSubscriptionDeleted:
		account, err := s.repo.AccountByCustomerRef(event.CustomerID)
		if err != nil {
			return nil, err
		}
		outcome.AccountID = account.ID
		apply = func(tx Tx) error {
			return tx.SetAdFree(account.ID, false)
		}
	case EventSubscriptionUpdated:
		if !IsSubscriptionEnding(event.SubscriptionState) {
			outcome.Ignored = true
			break
		}
		account, err := s.repo.AccountByCustomerRef(event.CustomerID)
		if err != nil {
			return nil, err
		}
		outcome.AccountID = account.ID
		apply = func(tx Tx) error {
			return tx.SetAdFree(account.ID, false)
		}
	default:
		outcome.Ignored = true
	}

	created, err := s.repo.ProcessEventOnce(record, apply)
	if err != nil {
		return nil, err
	}
	if !created {
		return &Outcome{EventID: event.ID, Duplicate: true}, nil
	}
	return outcome, nil
}

// checkoutApply maps a completed checkout session to its effect. Credit
// resolution (including the optional line-item fetch) completes before the
// dedup transaction opens.
func (s *Service) checkoutApply(ctx context.Context, event *Event, outcome *Outcome) (ApplyFunc, error) {
	accountID, ok := event.AccountID()
	if !ok {
		return nil, fmt.Errorf("%w: checkout session %s has no usable account reference", ErrUnresolvedAccount, event.CheckoutSessionID)
	}
	account, err := s.repo.AccountByID(accountID)
	if err != nil {
		return nil, err
	}
	outcome.AccountID = account.ID

	if event.Mode == CheckoutModeSubscription {
		customerID := event.CustomerID
		return func(tx Tx) error {
			if err := tx.LinkCustomer(account.ID, customerID); err != nil {
				return err
			}
			return tx.SetAdFree(account.ID, true)
		}, nil
	}

	items := event.LineItems
	if len(items) == 0 && s.lineItems != nil {
		items, err = s.lineItems.CheckoutLineItems(ctx, event.CheckoutSessionID)
		if err != nil {
			return nil, fmt.Errorf("resolving line items for %s: %w", event.CheckoutSessionID, err)
		}
	}

	credits := s.catalog.CreditsForLineItems(items)
	outcome.CreditsGranted = credits
	reference := "stripe:" + event.CheckoutSessionID
	customerID := event.CustomerID

	return func(tx Tx) error {
		if err := tx.LinkCustomer(account.ID, customerID); err != nil {
			return err
		}
		if credits <= 0 {
			// Non-credit-bearing line items; the event is still applied so
			// a redelivery stays a no-op.
			return nil
		}
		newBalance, err := tx.GrantCredits(
			account.ID,
			credits,
			models.CreditEventPurchase,
			reference,
			fmt.Sprintf("checkout purchase %d credits", credits),
		)
		if err != nil {
			return err
		}
		outcome.NewBalance = newBalance
		return nil
	}, nil
}
