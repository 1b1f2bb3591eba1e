package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configs/config.yaml (when present) and the environment. APP_
// prefixed variables override any key; the common deploy variables also work
// without the prefix.
func Load() (*Config, error) {
	return load(viper.New(), true)
}

// LoadFile reads a single config file, mainly for tests and tooling
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v, false)
}

func load(v *viper.Viper, search bool) (*Config, error) {
	if search {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath("/app/configs")
	}

	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow common env vars without APP_ prefix for Docker/VM deploys
	v.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	v.BindEnv("database.url", "DATABASE_URL", "APP_DATABASE_URL")
	v.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	v.BindEnv("queue.url", "NATS_URL", "APP_QUEUE_URL")
	v.BindEnv("jwt.secret", "JWT_SECRET", "APP_JWT_SECRET")
	v.BindEnv("qr.secret", "QR_SECRET", "APP_QR_SECRET")
	v.BindEnv("payment.stripe.secret_key", "STRIPE_SECRET_KEY", "APP_PAYMENT_STRIPE_SECRET_KEY")
	v.BindEnv("payment.stripe.webhook_secret", "STRIPE_WEBHOOK_SECRET", "APP_PAYMENT_STRIPE_WEBHOOK_SECRET")
	v.BindEnv("vault.address", "VAULT_ADDR", "APP_VAULT_ADDRESS")
	v.BindEnv("vault.token", "VAULT_TOKEN", "APP_VAULT_TOKEN")
	v.BindEnv("app.environment", "APP_ENVIRONMENT")
	v.BindEnv("logging.level", "LOG_LEVEL", "APP_LOGGING_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "parkflow")
	v.SetDefault("app.version", "v1.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.body_limit", 1<<20)

	v.SetDefault("grpc.port", 9090)
	v.SetDefault("grpc.health_interval", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.key_prefix", "parkflow:")
	v.SetDefault("redis.realtime_channel", "parkflow:realtime")

	v.SetDefault("queue.driver", "nats")
	v.SetDefault("queue.url", "nats://localhost:4222")
	v.SetDefault("queue.group", "parkflow-workers")

	v.SetDefault("jwt.access_token_duration", 15*time.Minute)

	v.SetDefault("payment.currency", "inr")
	v.SetDefault("payment.minimum_amount", 50)
	v.SetDefault("payment.refund_rate", 0.5)
	v.SetDefault("payment.subscription_fee", 3000)
	v.SetDefault("payment.subscription_plan", "Monthly Pass")

	v.SetDefault("notification.email.provider", "smtp")
	v.SetDefault("notification.email.from", "noreply@parkflow.io")
	v.SetDefault("notification.email.from_name", "ParkFlow")
	v.SetDefault("notification.email.base_url", "http://localhost:3000")
	v.SetDefault("notification.email.smtp.host", "localhost")
	v.SetDefault("notification.email.smtp.port", 1025)
	v.SetDefault("notification.webhook.timeout", 10*time.Second)

	v.SetDefault("expiry.interval", time.Minute)
	v.SetDefault("expiry.warning_window", 15*time.Minute)
	v.SetDefault("expiry.batch_size", 100)
	v.SetDefault("expiry.hold_ttl", 30*time.Minute)
	v.SetDefault("expiry.unhealthy_after", 3)

	v.SetDefault("cache.analytics_ttl", time.Minute)
	v.SetDefault("cache.local_cleanup_interval", 5*time.Minute)

	v.SetDefault("opentelemetry.service_name", "parkflow")
	v.SetDefault("opentelemetry.jaeger.endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("opentelemetry.jaeger.sampler_param", 1.0)

	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.sampling.initial", 100)
	v.SetDefault("logging.sampling.thereafter", 100)

	v.SetDefault("rate_limiting.enabled", true)
	v.SetDefault("rate_limiting.max_requests", 120)
	v.SetDefault("rate_limiting.window", time.Minute)

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", time.Minute)
	v.SetDefault("circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.failure_threshold", 0.6)

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("vault.mount", "secret")
	v.SetDefault("vault.path", "parkflow")
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.QR.Secret == "" {
		errs = append(errs, errors.New("qr.secret is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.Expiry.Interval <= 0 {
		errs = append(errs, errors.New("expiry.interval must be positive"))
	}
	if c.Expiry.BatchSize <= 0 {
		errs = append(errs, errors.New("expiry.batch_size must be positive"))
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	switch c.Queue.Driver {
	case "nats", "rabbitmq":
	default:
		errs = append(errs, fmt.Errorf("unknown queue.driver %q", c.Queue.Driver))
	}
	if c.Payment.RefundRate < 0 || c.Payment.RefundRate > 1 {
		errs = append(errs, errors.New("payment.refund_rate must be between 0 and 1"))
	}
	return errors.Join(errs...)
}
