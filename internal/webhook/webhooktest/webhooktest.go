// Package webhooktest signs deliveries the way the identity provider does,
// for use in tests of webhook receivers.
package webhooktest

import (
	"testing"
	"time"

	svix "github.com/svix/svix-webhooks/go"
)

// Secret is a well-formed signing secret for tests.
const Secret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

// Sign returns the signature header value for a delivery.
func Sign(tb testing.TB, secret, msgID string, timestamp time.Time, body []byte) string {
	tb.Helper()
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		tb.Fatalf("webhooktest: bad secret: %v", err)
	}
	sig, err := wh.Sign(msgID, timestamp, body)
	if err != nil {
		tb.Fatalf("webhooktest: sign: %v", err)
	}
	return sig
}
