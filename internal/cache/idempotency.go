package cache

import (
	"context"
	"fmt"
	"time"
)

// WebhookProcessedTTL bounds how long a delivered message id is remembered.
// The provider stops retrying well within this window.
const WebhookProcessedTTL = 24 * time.Hour

// WebhookProcessed reports whether a webhook message id was already handled.
func (c *Cache) WebhookProcessed(ctx context.Context, messageID string) (bool, error) {
	n, err := c.client.Exists(ctx, key("webhook", messageID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists webhook: %w", err)
	}
	return n > 0, nil
}

// MarkWebhookProcessed records a handled webhook message id.
func (c *Cache) MarkWebhookProcessed(ctx context.Context, messageID string) error {
	if err := c.client.Set(ctx, key("webhook", messageID), time.Now().UTC().Format(time.RFC3339), WebhookProcessedTTL).Err(); err != nil {
		return fmt.Errorf("redis mark webhook: %w", err)
	}
	return nil
}
