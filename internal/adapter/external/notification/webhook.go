package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body
const SignatureHeader = "X-Parkflow-Signature"

// WebhookSender posts booking lifecycle events to an operator-configured URL
type WebhookSender struct {
	url        string
	secret     []byte
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	log        *zap.Logger
}

// NewWebhookSender creates a sender. An empty url disables delivery.
func NewWebhookSender(url, secret string, timeout time.Duration, log *zap.Logger) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		url:        url,
		secret:     []byte(secret),
		httpClient: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "outbound-webhook",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Warn("Circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		log: log,
	}
}

type webhookBody struct {
	Event      string                 `json:"event"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

// Send delivers one webhook. Non-2xx responses are errors.
func (s *WebhookSender) Send(ctx context.Context, hook domain.OutboundWebhook) error {
	if s.url == "" {
		s.log.Debug("Webhook URL not configured, skipping", zap.String("event", hook.Event))
		return nil
	}

	payload, err := json.Marshal(webhookBody{Event: hook.Event, OccurredAt: hook.OccurredAt, Data: hook.Payload})
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	_, err = s.cb.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, hook.Event, payload)
	})
	if err != nil {
		s.log.Error("Failed to deliver webhook", zap.String("event", hook.Event), zap.Error(err))
		return err
	}

	s.log.Info("Webhook delivered", zap.String("event", hook.Event))
	return nil
}

func (s *WebhookSender) post(ctx context.Context, event string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Parkflow-Event", event)
	if len(s.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(s.secret, payload))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
