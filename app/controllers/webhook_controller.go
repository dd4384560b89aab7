package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/minivisionary/creditwallet/internal/pkg/billing"
	"github.com/minivisionary/creditwallet/internal/pkg/database"
	"github.com/minivisionary/creditwallet/internal/pkg/env"
)

// HandleStripeWebhook receives provider webhook deliveries. The signature is
// checked against the raw body before anything is parsed or persisted; an
// unresolved account NACKs with a 5xx so the provider redelivers later.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	if secret == "" {
		log.Error("stripe webhook received but STRIPE_WEBHOOK_SECRET is not configured")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_secret_not_configured"})
	}

	if !billing.VerifyStripeWebhookSignature(rawBody, signature, secret) {
		log.Warnf("stripe webhook with invalid signature from %s", c.IP())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB(), billing.LoadCatalogFromEnv(), billing.NewStripeClientFromEnv())
	outcome, err := svc.ProcessEvent(ctx, rawBody)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidPayload) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		}
		if errors.Is(err, billing.ErrUnresolvedAccount) {
			log.Warnf("stripe webhook references unknown account: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "account_unresolved"})
		}
		log.Errorf("stripe webhook processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	if outcome.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if outcome.Ignored {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
