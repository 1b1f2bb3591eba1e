package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
)

func TestWebhookSender_PostsSignedPayload(t *testing.T) {
	var gotSig, gotEvent string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotEvent = r.Header.Get("X-Parkflow-Event")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, "s3cret", time.Second, zap.NewNop())
	err := sender.Send(context.Background(), domain.OutboundWebhook{
		Event:      domain.WebhookBookingCreated,
		Payload:    map[string]interface{}{"bookingId": "b1"},
		OccurredAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.WebhookBookingCreated, gotEvent)
	assert.Equal(t, Sign([]byte("s3cret"), gotBody), gotSig)

	var body webhookBody
	require.NoError(t, json.Unmarshal(gotBody, &body))
	assert.Equal(t, "b1", body.Data["bookingId"])
}

func TestWebhookSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, "", time.Second, zap.NewNop())
	err := sender.Send(context.Background(), domain.OutboundWebhook{Event: domain.WebhookBookingExpired})
	assert.Error(t, err)
}

func TestWebhookSender_DisabledWithoutURL(t *testing.T) {
	sender := NewWebhookSender("", "", 0, zap.NewNop())
	assert.NoError(t, sender.Send(context.Background(), domain.OutboundWebhook{Event: domain.WebhookBookingExpired}))
}
