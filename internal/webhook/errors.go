package webhook

import "errors"

// Sentinel errors for webhook verification.
var (
	ErrMissingSecret        = errors.New("webhook secret not configured")
	ErrMalformedSecret      = errors.New("webhook secret is not valid base64")
	ErrMissingHeaders       = errors.New("missing webhook signature headers")
	ErrInvalidTimestamp     = errors.New("invalid webhook timestamp")
	ErrReplayWindowExceeded = errors.New("timestamp outside replay window")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrMalformedPayload     = errors.New("malformed webhook payload")
)
