package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookSink POSTs each event as JSON.
type WebhookSink struct {
	url    string
	client *resty.Client
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &WebhookSink{
		url:    url,
		client: resty.New().SetTimeout(timeout),
	}
}

func (w *WebhookSink) Name() string { return "webhook" }

func (w *WebhookSink) Publish(ctx context.Context, ev Event) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(ev).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", w.url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook %s returned %s: %s", w.url, resp.Status(), resp.String())
	}
	return nil
}

func (w *WebhookSink) Close() error { return nil }
