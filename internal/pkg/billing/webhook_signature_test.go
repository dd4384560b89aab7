package billing

import (
	"testing"
	"time"
)

func TestVerifyStripeWebhookSignature(t *testing.T) {
	payload := []byte(`{"id": "evt_1", "type": "invoice.paid"}`)
	secret := "whsec_test"
	now := time.Now()

	header := SignWebhookPayload(payload, secret, now)
	if !verifyStripeWebhookSignatureAt(payload, header, secret, now) {
		t.Fatal("valid signature rejected")
	}

	if verifyStripeWebhookSignatureAt(payload, header, "whsec_other", now) {
		t.Error("signature accepted with wrong secret")
	}

	tampered := append([]byte{}, payload...)
	tampered[0] = '['
	if verifyStripeWebhookSignatureAt(tampered, header, secret, now) {
		t.Error("signature accepted for tampered payload")
	}
}

func TestVerifyStripeWebhookSignatureTolerance(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_test"
	signedAt := time.Now()

	header := SignWebhookPayload(payload, secret, signedAt)

	if !verifyStripeWebhookSignatureAt(payload, header, secret, signedAt.Add(4*time.Minute)) {
		t.Error("signature within tolerance rejected")
	}
	if verifyStripeWebhookSignatureAt(payload, header, secret, signedAt.Add(6*time.Minute)) {
		t.Error("stale signature accepted")
	}
	if verifyStripeWebhookSignatureAt(payload, header, secret, signedAt.Add(-6*time.Minute)) {
		t.Error("future-dated signature accepted")
	}
}

func TestVerifyStripeWebhookSignatureMalformedHeader(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_test"
	now := time.Now()

	for _, header := range []string{
		"",
		"t=abc,v1=deadbeef",
		"v1=deadbeef",
		"t=" + "1700000000",
	} {
		if verifyStripeWebhookSignatureAt(payload, header, secret, now) {
			t.Errorf("malformed header %q accepted", header)
		}
	}
}
