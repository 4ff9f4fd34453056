package postgres

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"tombstone/pkg/logger"
)

// LogHandler writes every message to the log. Used when no webhook is configured.
func LogHandler(log *logger.Logger) OutboxHandler {
	return OutboxHandlerFunc(func(ctx context.Context, msg *OutboxMessage) error {
		log.WithContext(ctx).Infow("lifecycle event",
			"message_id", msg.ID.String(),
			"event_type", msg.EventType,
			"aggregate_type", msg.AggregateType,
			"aggregate_id", msg.AggregateID.String(),
			"payload", string(msg.Payload),
		)
		return nil
	})
}

// WebhookHandler POSTs the payload to url. Any non-2xx status is a failed
// delivery and is retried by the relay.
func WebhookHandler(client *http.Client, url string) OutboxHandler {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return OutboxHandlerFunc(func(ctx context.Context, msg *OutboxMessage) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(msg.Payload))
		if err != nil {
			return fmt.Errorf("build webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Type", msg.EventType)
		req.Header.Set("X-Event-ID", msg.ID.String())

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
		}
		return nil
	})
}
