package controllers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/minivisionary/creditwallet/internal/pkg/billing"
	"github.com/minivisionary/creditwallet/internal/pkg/database"
	"github.com/minivisionary/creditwallet/internal/pkg/env"
	"github.com/minivisionary/creditwallet/internal/pkg/usercontext"
	"github.com/minivisionary/creditwallet/internal/pkg/wallet"
)

// HandleProducts lists the purchasable credit packs and the ad-free
// subscription
func HandleProducts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"products": billing.LoadCatalogFromEnv().Products()})
}

type checkoutRequest struct {
	SKU string `json:"sku"`
}

// HandleCreateCheckout creates a hosted checkout session for a catalog
// product. The account id travels as client_reference_id so the webhook can
// map the completed session back.
func HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}

	catalog := billing.LoadCatalogFromEnv()
	product, ok := catalog.Product(req.SKU)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_product"})
	}
	if product.PriceID == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "product_not_purchasable"})
	}

	client := billing.NewStripeClientFromEnv()
	if !client.IsConfigured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "payments_not_configured"})
	}

	mode := billing.CheckoutModePayment
	if product.Subscription {
		mode = billing.CheckoutModeSubscription
	}

	baseURL := env.GetEnv("APP_PUBLIC_URL", "http://localhost:8080")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	session, err := client.CreateCheckoutSession(ctx, billing.CheckoutSessionParams{
		Mode:              mode,
		PriceID:           product.PriceID,
		Quantity:          1,
		SuccessURL:        baseURL + "/store/success",
		CancelURL:         baseURL + "/store",
		ClientReferenceID: strconv.FormatUint(uint64(userCtx.UserID), 10),
		SKU:               product.SKU,
	})
	if err != nil {
		log.Errorf("checkout session creation failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "checkout_failed"})
	}

	return c.JSON(fiber.Map{"checkout_url": session.URL, "session_id": session.ID})
}

// HandleWallet returns the current balance with the latest purchase receipts
func HandleWallet(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc := wallet.NewServiceFromDB(database.GetDB())
	balance, err := svc.Balance(ctx, userCtx.UserID)
	if err != nil {
		log.Errorf("balance lookup failed for account %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	receipts, err := svc.Receipts(ctx, userCtx.UserID, 10)
	if err != nil {
		log.Errorf("receipt lookup failed for account %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{
		"balance":  balance,
		"receipts": receipts,
	})
}
