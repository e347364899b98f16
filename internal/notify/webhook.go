package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"obralink/internal/config"
	"obralink/internal/domain"
)

// Webhook posts notifications as JSON to a configured endpoint.
type Webhook struct {
	hook   config.Webhook
	filter eventFilter
	client *http.Client
}

func NewWebhook(hook config.Webhook, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: hook.Timeout()}
	}
	return &Webhook{hook: hook, filter: newEventFilter(hook.Events), client: client}
}

type webhookBody struct {
	Type      string         `json:"type"`
	ProjectID string         `json:"project_id"`
	Kind      domain.Kind    `json:"kind"`
	ItemID    int64          `json:"item_id"`
	Actor     string         `json:"actor"`
	Recipient string         `json:"recipient,omitempty"`
	Status    string         `json:"status"`
	Payload   map[string]any `json:"payload"`
	AccessRef string         `json:"access_ref,omitempty"`
}

func (w *Webhook) Notify(ctx context.Context, n domain.Notification) error {
	if !w.hook.Active() || !w.filter.match(n.Type) {
		return nil
	}
	payload := n.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(webhookBody{
		Type:      n.Type,
		ProjectID: n.ProjectID,
		Kind:      n.Kind,
		ItemID:    n.ItemID,
		Actor:     n.Actor,
		Recipient: n.Recipient,
		Status:    n.Status,
		Payload:   payload,
		AccessRef: n.AccessRef,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Obralink-Event", n.Type)
	req.Header.Set("X-Obralink-Project", n.ProjectID)
	if strings.TrimSpace(w.hook.Secret) != "" {
		req.Header.Set("X-Obralink-Secret", w.hook.Secret)
	}
	res, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", w.hook.URL, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("webhook %s: status %d: %s", w.hook.URL, res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
