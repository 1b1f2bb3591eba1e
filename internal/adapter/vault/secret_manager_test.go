package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/pkg/config"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func kvServer(t *testing.T, secrets map[string]map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		data, ok := secrets[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data": data,
				"metadata": map[string]interface{}{
					"created_time":    "2026-01-01T00:00:00Z",
					"custom_metadata": nil,
					"deletion_time":   "",
					"destroyed":       false,
					"version":         1,
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSecretManager_Apply(t *testing.T) {
	srv := kvServer(t, map[string]map[string]interface{}{
		"/v1/secret/data/parkflow": {
			"qr_secret":         "qr-from-vault",
			"stripe_secret_key": "sk_test_vault",
			"database_url":      "postgres://vault/db",
			"unrelated":         "ignored",
			"empty":             "",
		},
	})

	sm, err := NewSecretManager(srv.URL, "test-token", "secret", newTestLogger())
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.QR.Secret = "local"
	cfg.JWT.Secret = "keep-me"

	applied, err := sm.Apply(context.Background(), "parkflow", cfg)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"qr_secret", "stripe_secret_key", "database_url"}, applied)
	assert.Equal(t, "qr-from-vault", cfg.QR.Secret)
	assert.Equal(t, "sk_test_vault", cfg.Payment.Stripe.SecretKey)
	assert.Equal(t, "postgres://vault/db", cfg.Database.URL)
	assert.Equal(t, "keep-me", cfg.JWT.Secret)
}

func TestSecretManager_MissingSecretIsEmpty(t *testing.T) {
	srv := kvServer(t, nil)

	sm, err := NewSecretManager(srv.URL, "test-token", "secret", newTestLogger())
	require.NoError(t, err)

	values, err := sm.Read(context.Background(), "absent")
	require.NoError(t, err)
	assert.Empty(t, values)
}
