package billing

import (
	"strings"

	"github.com/minivisionary/creditwallet/internal/pkg/env"
)

// Product is one purchasable item in the store. Credit packs are one-time
// payments; the ad-free product is a subscription and grants no credits.
type Product struct {
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Description  string `json:"desc"`
	Credits      int    `json:"credits"`
	AmountCents  int    `json:"amount_cents"`
	PriceID      string `json:"-"`
	Subscription bool   `json:"subscription"`
}

// Catalog is the server-authoritative product list and the price->credits
// mapping consulted by the webhook reconciler. A price id absent from the
// mapping resolves to zero credits (non-credit-bearing line item, e.g. a
// subscription), which is applied as a no-credit event rather than rejected.
type Catalog struct {
	products       []Product
	bySKU          map[string]Product
	creditsByPrice map[string]int
}

// NewCatalog builds a catalog from a product list. Products without a
// configured price id are listed but can never match a webhook line item.
func NewCatalog(products []Product) *Catalog {
	c := &Catalog{
		products:       products,
		bySKU:          make(map[string]Product, len(products)),
		creditsByPrice: make(map[string]int, len(products)),
	}
	for _, p := range products {
		c.bySKU[p.SKU] = p
		if p.PriceID != "" && !p.Subscription {
			c.creditsByPrice[p.PriceID] = p.Credits
		}
	}
	return c
}

// LoadCatalogFromEnv builds the store catalog with provider price ids taken
// from STORE_PRICE_* environment variables.
func LoadCatalogFromEnv() *Catalog {
	return NewCatalog([]Product{
		{
			SKU:         "starter",
			Name:        "Starter Pack",
			Description: "60 poster credits (6 posters)",
			Credits:     60,
			AmountCents: 900,
			PriceID:     strings.TrimSpace(env.GetEnv("STORE_PRICE_STARTER", "")),
		},
		{
			SKU:         "standard",
			Name:        "Standard Pack",
			Description: "100 poster credits (10 posters)",
			Credits:     100,
			AmountCents: 1500,
			PriceID:     strings.TrimSpace(env.GetEnv("STORE_PRICE_STANDARD", "")),
		},
		{
			SKU:         "studio",
			Name:        "Studio Pack",
			Description: "400 poster credits (40 posters)",
			Credits:     400,
			AmountCents: 4900,
			PriceID:     strings.TrimSpace(env.GetEnv("STORE_PRICE_STUDIO", "")),
		},
		{
			SKU:          "adfree",
			Name:         "Ad-Free Subscription",
			Description:  "Monthly subscription - no ads or promos",
			Credits:      0,
			AmountCents:  499,
			PriceID:      strings.TrimSpace(env.GetEnv("STORE_PRICE_ADFREE", "")),
			Subscription: true,
		},
	})
}

// Products returns the purchasable items in listing order.
func (c *Catalog) Products() []Product {
	return c.products
}

// Product looks up a product by SKU.
func (c *Catalog) Product(sku string) (Product, bool) {
	p, ok := c.bySKU[strings.ToLower(strings.TrimSpace(sku))]
	return p, ok
}

// CreditsForPrice resolves a provider price id to a credit amount. Unknown
// price ids resolve to zero.
func (c *Catalog) CreditsForPrice(priceID string) int {
	return c.creditsByPrice[priceID]
}

// CreditsForLineItems sums the credits purchased across a checkout's line
// items.
func (c *Catalog) CreditsForLineItems(items []LineItem) int {
	total := 0
	for _, li := range items {
		qty := li.Quantity
		if qty <= 0 {
			qty = 1
		}
		total += c.CreditsForPrice(li.PriceID) * qty
	}
	return total
}
