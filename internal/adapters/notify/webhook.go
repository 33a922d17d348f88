package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prognocap/alphaengine/internal/ports"
)

// Webhook posts events as JSON to a configured URL. An empty URL
// disables it, so wiring is unconditional and the config decides.
type Webhook struct {
	url     string
	enabled bool
	http    *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:     url,
		enabled: url != "",
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (w *Webhook) Notify(ctx context.Context, kind ports.EventKind, payload any) error {
	if !w.enabled {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"event":     string(kind),
		"payload":   payload,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("notify.Webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify.Webhook: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify.Webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify.Webhook: status %d", resp.StatusCode)
	}
	return nil
}

// Fanout delivers each event to every notifier, returning the first
// error after all have been attempted.
type Fanout []ports.Notifier

func (f Fanout) Notify(ctx context.Context, kind ports.EventKind, payload any) error {
	var first error
	for _, n := range f {
		if err := n.Notify(ctx, kind, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}
