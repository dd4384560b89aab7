package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minivisionary/creditwallet/app/models"
)

// memRepository is an in-memory Repository that honors the same contract as
// the GORM implementation: every UpdateBalance runs as a serialized unit per
// account, and the ledger append is atomic with the balance write.
type memRepository struct {
	mu       sync.Mutex
	locks    map[uint]*sync.Mutex
	balances map[uint]int
	entries  map[uint][]models.CreditLedgerEntry
	nextID   uint
}

func newMemRepository() *memRepository {
	return &memRepository{
		locks:    make(map[uint]*sync.Mutex),
		balances: make(map[uint]int),
		entries:  make(map[uint][]models.CreditLedgerEntry),
	}
}

func (r *memRepository) addAccount(id uint, balance int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[id] = balance
	r.locks[id] = &sync.Mutex{}
}

func (r *memRepository) accountLock(id uint) (*sync.Mutex, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	return l, ok
}

func (r *memRepository) GetBalance(accountID uint) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	balance, ok := r.balances[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (r *memRepository) UpdateBalance(accountID uint, mutate BalanceMutation) (int, error) {
	lock, ok := r.accountLock(accountID)
	if !ok {
		return 0, ErrAccountNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	current := r.balances[accountID]
	r.mu.Unlock()

	next, entry, err := mutate(current)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[accountID] = next
	if entry != nil {
		r.nextID++
		entry.ID = r.nextID
		entry.AccountID = accountID
		entry.BalanceAfter = next
		r.entries[accountID] = append(r.entries[accountID], *entry)
	}
	return next, nil
}

func (r *memRepository) RecentEntries(accountID uint, eventType string, limit int) ([]models.CreditLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CreditLedgerEntry
	all := r.entries[accountID]
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if eventType == "" || all[i].EventType == eventType {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (r *memRepository) ledgerSum(accountID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := 0
	for _, e := range r.entries[accountID] {
		sum += e.Amount
	}
	return sum
}

func (r *memRepository) entryCount(accountID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries[accountID])
}

func TestGrantAppendsLedgerEntry(t *testing.T) {
	repo := newMemRepository()
	repo.addAccount(1, 0)
	svc := NewService(repo)
	ctx := context.Background()

	balance, err := svc.Grant(ctx, 1, 60, models.CreditEventPurchase, "stripe:evt_1", "checkout purchase")
	require.NoError(t, err)
	assert.Equal(t, 60, balance)

	entries, err := repo.RecentEntries(1, "", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.CreditEventPurchase, entries[0].EventType)
	assert.Equal(t, 60, entries[0].Amount)
	assert.Equal(t, 60, entries[0].BalanceAfter)
	assert.Equal(t, "stripe:evt_1", entries[0].Reference)
}

func TestGrantRejectsNonPositiveAmount(t *testing.T) {
	repo := newMemRepository()
	repo.addAccount(1, 10)
	svc := NewService(repo)

	for _, amount := range []int{0, -5} {
		_, err := svc.Grant(context.Background(), 1, amount, models.CreditEventGrant, "", "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	balance, _ := svc.Balance(context.Background(), 1)
	assert.Equal(t, 10, balance)
	assert.Equal(t, 0, repo.entryCount(1))
}

func TestGrantRejectsNonGrantEventType(t *testing.T) {
	repo := newMemRepository()
	repo.addAccount(1, 10)
	svc := NewService(repo)

	for _, eventType := range []string{"", "bogus", models.CreditEventSpend, models.CreditEventRefund} {
		_, err := svc.Grant(context.Background(), 1, 5, eventType, "", "")
		assert.ErrorIs(t, err, ErrInvalidEventType, "eventType %q", eventType)
	}

	balance, _ := svc.Balance(context.Background(), 1)
	assert.Equal(t, 10, balance)
	assert.Equal(t, 0, repo.entryCount(1))
}

func TestGrantUnknownAccount(t *testing.T) {
	svc := NewService(newMemRepository())

	_, err := svc.Grant(context.Background(), 99, 10, models.CreditEventGrant, "", "")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.Balance(context.Background(), 99)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSpendInsufficientBalanceLeavesNoTrace(t *testing.T) {
	repo := newMemRepository()
	repo.addAccount(1, 5)
	svc := NewService(repo)

	_, err := svc.Spend(context.Background(), 1, 10, "poster:abc", "")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	balance, _ := svc.Balance(context.Background(), 1)
	assert.Equal(t, 5, balance)
	assert.Equal(t, 0, repo.entryCount(1), "failed spend must not write a ledger entry")
}

func TestSpendRecordsNegativeAmount(t *testing.T) {
	repo := newMemRepository()
	repo.addAccount(1, 30)
	svc := NewService(repo)

	balance, err := svc.Spend(context.Background(), 1, 10, "poster:abc", "poster generation")
	require.NoError(t, err)
	assert.Equal(t, 20, balance)

	entries, _ := repo.RecentEntries(1, models.CreditEventSpend, 10)
	require.Len(t, entries, 1)
	assert.Equal(t, -10, entries[0].Amount)
	assert.Equal(t, 20, entries[0].BalanceAfter)
}

func TestSpendRefundRoundTrip(t *testing.T) {
	repo := newMemRepository()
	repo.addAccount(1, 50)
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Spend(ctx, 1, 10, "poster:xyz", "")
	require.NoError(t, err)
	balance, err := svc.Refund(ctx, 1, 10, "poster:xyz", "generation failed")
	require.NoError(t, err)

	assert.Equal(t, 50, balance)
	require.Equal(t, 2, repo.entryCount(1))
	assert.Equal(t, 0, repo.ledgerSum(1), "spend and refund amounts must sum to zero")
}

func TestConcurrentSpendsSerialize(t *testing.T) {
	repo := newMemRepository()
	repo.addAccount(1, 50)
	svc := NewService(repo)

	const workers = 20
	const amount = 10

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Spend(context.Background(), 1, amount, "", "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("unexpected spend error: %v", err)
		}
	}

	assert.Equal(t, 5, succeeded, "exactly floor(50/10) spends may succeed")
	balance, _ := svc.Balance(context.Background(), 1)
	assert.Equal(t, 0, balance)
	assert.Equal(t, repo.ledgerSum(1), balance-50, "ledger sum must equal net balance change")
}

func TestBalanceNeverNegative(t *testing.T) {
	repo := newMemRepository()
	repo.addAccount(1, 20)
	svc := NewService(repo)
	ctx := context.Background()

	ops := []func() (int, error){
		func() (int, error) { return svc.Grant(ctx, 1, 60, models.CreditEventPurchase, "evt_1", "") },
		func() (int, error) { return svc.Spend(ctx, 1, 100, "", "") },
		func() (int, error) { return svc.Spend(ctx, 1, 80, "", "") },
		func() (int, error) { return svc.Spend(ctx, 1, 1, "", "") },
	}
	for _, op := range ops {
		_, _ = op()
		balance, err := svc.Balance(ctx, 1)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, balance, 0)
		assert.Equal(t, 20+repo.ledgerSum(1), balance, "balance must equal starting balance plus ledger sum")
	}

	balance, _ := svc.Balance(ctx, 1)
	assert.Equal(t, 0, balance)
}
