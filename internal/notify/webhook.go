// Package notify tells operators that ingest keeps failing.
package notify

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// Failure is the JSON body posted to the webhook.
type Failure struct {
	Host    string    `json:"host"`
	Error   string    `json:"error"`
	Attempt int       `json:"attempt"`
	Limit   int       `json:"limit"`
	GaveUp  bool      `json:"gaveUp"`
	At      time.Time `json:"at"`
}

// Webhook posts failure reports to an HTTP endpoint such as a chat
// incoming-webhook.
type Webhook struct {
	client *resty.Client
	url    string
	limit  int
}

func NewWebhook(url string, limit int) *Webhook {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("Content-Type", "application/json")
	return &Webhook{client: client, url: url, limit: limit}
}

// NotifyFailure reports the attempt-th consecutive failed cycle.
func (w *Webhook) NotifyFailure(ctx context.Context, cause error, attempt int) error {
	host, _ := os.Hostname()
	body := Failure{
		Host:    host,
		Error:   cause.Error(),
		Attempt: attempt,
		Limit:   w.limit,
		GaveUp:  w.limit > 0 && attempt >= w.limit,
		At:      time.Now().UTC(),
	}
	resp, err := w.client.R().SetContext(ctx).SetBody(body).Post(w.url)
	if err != nil {
		return fmt.Errorf("notify webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify webhook: status %s", resp.Status())
	}
	return nil
}
