package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventCheckoutSession(t *testing.T) {
	raw := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_123",
			"mode": "payment",
			"client_reference_id": "15",
			"customer": "cus_abc",
			"amount_total": 1500,
			"line_items": {"data": [
				{"quantity": 2, "price": {"id": "price_standard"}}
			]}
		}}
	}`)

	event, err := ParseEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "cs_123", event.CheckoutSessionID)
	assert.Equal(t, CheckoutModePayment, event.Mode)
	assert.Equal(t, "cus_abc", event.CustomerID)
	assert.Equal(t, int64(1500), event.AmountTotal)
	require.Len(t, event.LineItems, 1)
	assert.Equal(t, "price_standard", event.LineItems[0].PriceID)
	assert.Equal(t, 2, event.LineItems[0].Quantity)

	id, ok := event.AccountID()
	require.True(t, ok)
	assert.Equal(t, uint(15), id)
}

func TestParseEventMetadataFallback(t *testing.T) {
	raw := []byte(`{
		"id": "evt_2",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "mode": "payment", "metadata": {"user_id": "8"}}}
	}`)

	event, err := ParseEvent(raw)
	require.NoError(t, err)
	id, ok := event.AccountID()
	require.True(t, ok)
	assert.Equal(t, uint(8), id)
}

func TestParseEventBadAccountRef(t *testing.T) {
	for _, ref := range []string{"", "0", "-3", "abc", "18446744073709551616"} {
		event := &Event{AccountRef: ref}
		if _, ok := event.AccountID(); ok {
			t.Errorf("account ref %q resolved", ref)
		}
	}
}

func TestParseEventSubscriptionStatus(t *testing.T) {
	raw := []byte(`{
		"id": "evt_3",
		"type": "customer.subscription.updated",
		"data": {"object": {"customer": "cus_abc", "status": "Past_Due"}}
	}`)

	event, err := ParseEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "past_due", event.SubscriptionState)
	assert.True(t, IsSubscriptionEnding(event.SubscriptionState))
}

func TestParseEventMissingID(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type": "invoice.paid", "data": {"object": {}}}`))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestIsSubscriptionEnding(t *testing.T) {
	cases := map[string]bool{
		"canceled":           true,
		"unpaid":             true,
		"incomplete_expired": true,
		"past_due":           true,
		"active":             false,
		"trialing":           false,
		"":                   false,
	}
	for status, want := range cases {
		if got := IsSubscriptionEnding(status); got != want {
			t.Errorf("IsSubscriptionEnding(%q) = %v, want %v", status, got, want)
		}
	}
}
