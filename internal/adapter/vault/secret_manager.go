package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/pkg/config"
)

// SecretManager reads deployment secrets from a KV v2 mount
type SecretManager struct {
	client *api.Client
	mount  string
	log    *zap.Logger
}

func NewSecretManager(address, token, mount string, log *zap.Logger) (*SecretManager, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(token)

	return &SecretManager{client: client, mount: mount, log: log}, nil
}

// Read returns the string fields stored at path. A missing secret is an
// empty map.
func (sm *SecretManager) Read(ctx context.Context, path string) (map[string]string, error) {
	secret, err := sm.client.KVv2(sm.mount).Get(ctx, path)
	if err != nil {
		if errors.Is(err, api.ErrSecretNotFound) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read secret %s/%s: %w", sm.mount, path, err)
	}

	out := make(map[string]string, len(secret.Data))
	for k, v := range secret.Data {
		if s, ok := v.(string); ok && s != "" {
			out[k] = s
		}
	}
	return out, nil
}

// Apply overlays the secrets at path onto cfg and returns the keys it set.
// Values already present in cfg are replaced.
func (sm *SecretManager) Apply(ctx context.Context, path string, cfg *config.Config) ([]string, error) {
	values, err := sm.Read(ctx, path)
	if err != nil {
		return nil, err
	}

	targets := map[string]*string{
		"database_url":          &cfg.Database.URL,
		"redis_url":             &cfg.Redis.URL,
		"jwt_secret":            &cfg.JWT.Secret,
		"qr_secret":             &cfg.QR.Secret,
		"stripe_secret_key":     &cfg.Payment.Stripe.SecretKey,
		"stripe_webhook_secret": &cfg.Payment.Stripe.WebhookSecret,
		"webhook_secret":        &cfg.Notification.Webhook.Secret,
		"email_api_key":         &cfg.Notification.Email.APIKey,
		"smtp_password":         &cfg.Notification.Email.SMTP.Password,
	}

	var applied []string
	for key, dst := range targets {
		if v, ok := values[key]; ok {
			*dst = v
			applied = append(applied, key)
		}
	}

	sm.log.Info("Applied vault secrets",
		zap.String("path", sm.mount+"/"+path),
		zap.Int("count", len(applied)),
	)
	return applied, nil
}
