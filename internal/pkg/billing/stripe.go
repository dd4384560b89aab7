package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/minivisionary/creditwallet/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// Event types consumed by the reconciler. Everything else is acknowledged
// without effect.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoicePaid         = "invoice.paid"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Checkout modes.
const (
	CheckoutModePayment      = "payment"
	CheckoutModeSubscription = "subscription"
)

// LineItem is one purchased (price, quantity) pair from a checkout session.
type LineItem struct {
	PriceID  string
	Quantity int
}

// Event is the normalized subset of a provider webhook payload consumed by
// the reconciler.
type Event struct {
	ID                string
	Type              string
	CheckoutSessionID string
	Mode              string
	AccountRef        string // client_reference_id, falls back to metadata.user_id
	CustomerID        string
	SubscriptionState string
	AmountTotal       int64
	LineItems         []LineItem
}

// AccountID parses the checkout's account reference into a local account id.
func (e *Event) AccountID() (uint, bool) {
	ref := strings.TrimSpace(e.AccountRef)
	if ref == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(ref, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSessionObject struct {
	ID                string `json:"id"`
	Mode              string `json:"mode"`
	ClientReferenceID string `json:"client_reference_id"`
	Customer          string `json:"customer"`
	AmountTotal       int64  `json:"amount_total"`
	Metadata          struct {
		UserID string `json:"user_id"`
	} `json:"metadata"`
	LineItems struct {
		Data []lineItemObject `json:"data"`
	} `json:"line_items"`
}

type lineItemObject struct {
	Quantity int `json:"quantity"`
	Price    struct {
		ID string `json:"id"`
	} `json:"price"`
}

type subscriptionObject struct {
	Customer string `json:"customer"`
	Status   string `json:"status"`
}

// ParseEvent normalizes a raw webhook payload. The event id is required; it
// is the global deduplication key.
func ParseEvent(raw []byte) (*Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(envelope.ID) == "" || strings.TrimSpace(envelope.Type) == "" {
		return nil, fmt.Errorf("%w: missing event id or type", ErrInvalidPayload)
	}

	event := &Event{
		ID:   strings.TrimSpace(envelope.ID),
		Type: strings.TrimSpace(envelope.Type),
	}

	switch event.Type {
	case EventCheckoutCompleted:
		var obj checkoutSessionObject
		if err := json.Unmarshal(envelope.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		event.CheckoutSessionID = obj.ID
		event.Mode = obj.Mode
		event.AccountRef = obj.ClientReferenceID
		if event.AccountRef == "" {
			event.AccountRef = obj.Metadata.UserID
		}
		event.CustomerID = obj.Customer
		event.AmountTotal = obj.AmountTotal
		for _, li := range obj.LineItems.Data {
			event.LineItems = append(event.LineItems, LineItem{
				PriceID:  li.Price.ID,
				Quantity: li.Quantity,
			})
		}
	case EventInvoicePaid:
		var obj subscriptionObject
		if err := json.Unmarshal(envelope.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		event.CustomerID = obj.Customer
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var obj subscriptionObject
		if err := json.Unmarshal(envelope.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		event.CustomerID = obj.Customer
		event.SubscriptionState = strings.ToLower(strings.TrimSpace(obj.Status))
	}

	return event, nil
}

// IsSubscriptionEnding reports whether a subscription update means the
// ad-free flag should be dropped.
func IsSubscriptionEnding(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "canceled", "unpaid", "incomplete_expired", "past_due":
		return true
	default:
		return false
	}
}

// StripeClient is a minimal provider API client used for creating checkout
// sessions and re-fetching expanded line items when a webhook payload does
// not embed them.
type StripeClient struct {
	SecretKey  string
	APIBaseURL string

	HTTPClient *http.Client
}

// NewStripeClientFromEnv builds a client from STRIPE_* environment values.
func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		SecretKey:  strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// IsConfigured reports whether the client has a secret key.
func (c *StripeClient) IsConfigured() bool {
	return strings.TrimSpace(c.SecretKey) != ""
}

// CheckoutSessionParams describes a checkout session to create.
type CheckoutSessionParams struct {
	Mode              string
	PriceID           string
	Quantity          int
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	SKU               string
}

// CheckoutSession is the subset of the provider response we use.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession creates a hosted checkout session for a single
// price.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	if !c.IsConfigured() {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}
	if strings.TrimSpace(params.PriceID) == "" {
		return nil, errors.New("price id is required")
	}
	qty := params.Quantity
	if qty <= 0 {
		qty = 1
	}

	form := url.Values{}
	form.Set("mode", params.Mode)
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", strconv.Itoa(qty))
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("client_reference_id", params.ClientReferenceID)
	if params.SKU != "" {
		form.Set("metadata[sku]", params.SKU)
	}

	var session CheckoutSession
	if err := c.postForm(ctx, "/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CheckoutLineItems fetches the expanded line items of a checkout session.
// Used by the reconciler when the webhook payload carries none, and always
// before the dedup transaction is opened.
func (c *StripeClient) CheckoutLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	if !c.IsConfigured() {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("checkout session id is required")
	}

	var payload struct {
		Data []lineItemObject `json:"data"`
	}
	path := "/checkout/sessions/" + url.PathEscape(sessionID) + "/line_items"
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}

	items := make([]LineItem, 0, len(payload.Data))
	for _, li := range payload.Data {
		items = append(items, LineItem{PriceID: li.Price.ID, Quantity: li.Quantity})
	}
	return items, nil
}

func (c *StripeClient) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *StripeClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *StripeClient) do(req *http.Request, out interface{}) error {
	req.SetBasicAuth(c.SecretKey, "")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stripe api %s: status %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}
