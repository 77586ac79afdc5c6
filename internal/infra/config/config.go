package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App         AppSettings         `mapstructure:"app"`
	Postgres    PostgresSettings    `mapstructure:"postgres"`
	Redis       RedisSettings       `mapstructure:"redis"`
	Events      EventsSettings      `mapstructure:"events"`
	Kafka       KafkaSettings       `mapstructure:"kafka"`
	NATS        NATSSettings        `mapstructure:"nats"`
	JWT         JWTSettings         `mapstructure:"jwt"`
	Telemetry   TelemetrySettings   `mapstructure:"telemetry"`
	RateLimit   RateLimitSettings   `mapstructure:"rate_limit"`
	Lockout     LockoutSettings     `mapstructure:"lockout"`
	Argon2      Argon2Settings      `mapstructure:"argon2"`
	Validation  ValidationSettings  `mapstructure:"validation"`
	Stripe      StripeSettings      `mapstructure:"stripe"`
	MediaServer MediaServerSettings `mapstructure:"media_server"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Debug exposes internal error detail in 500 responses.
	Debug       bool     `mapstructure:"debug"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// TrustedProxies lists the proxy CIDRs whose X-Forwarded-For is honoured.
	// Empty means the client IP is always the socket peer.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MigrateOnStart    bool          `mapstructure:"migrate_on_start"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// DSN renders a pgx-compatible connection URL.
func (p PostgresSettings) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Database,
		p.SSLMode,
	)
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// EventsSettings selects the domain event transport: log, kafka or nats.
type EventsSettings struct {
	Driver string `mapstructure:"driver"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type NATSSettings struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type JWTSettings struct {
	Secret         string        `mapstructure:"secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings configures per-action sliding windows.
type RateLimitSettings struct {
	LoginMaxAttempts    int           `mapstructure:"login_max_attempts"`
	LoginWindow         time.Duration `mapstructure:"login_window"`
	RegisterMaxAttempts int           `mapstructure:"register_max_attempts"`
	RegisterWindow      time.Duration `mapstructure:"register_window"`
	APIMaxRequests      int           `mapstructure:"api_max_requests"`
	APIWindow           time.Duration `mapstructure:"api_window"`
}

// LockoutSettings configures per-account failure tracking.
type LockoutSettings struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Duration    time.Duration `mapstructure:"duration"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type ValidationSettings struct {
	MinPasswordLength int `mapstructure:"min_password_length"`
	// MinPasswordScore enables the zxcvbn strength rule when positive (0-4).
	MinPasswordScore int `mapstructure:"min_password_score"`
}

type StripeSettings struct {
	SecretKey        string        `mapstructure:"secret_key"`
	WebhookSecret    string        `mapstructure:"webhook_secret"`
	APIURL           string        `mapstructure:"api_url"`
	WebhookTolerance time.Duration `mapstructure:"webhook_tolerance"`
}

type MediaServerSettings struct {
	APIURL   string        `mapstructure:"api_url"`
	APIToken string        `mapstructure:"api_token"`
	RTMPPort int           `mapstructure:"rtmp_port"`
	HLSPort  int           `mapstructure:"hls_port"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("PPV")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.debug",
		"app.cors_origins",
		"app.trusted_proxies",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.migrate_on_start",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.key_prefix",
		"events.driver",
		"kafka.brokers",
		"kafka.topic_prefix",
		"nats.url",
		"nats.subject_prefix",
		"jwt.secret",
		"jwt.issuer",
		"jwt.access_token_ttl",
		"telemetry.tracing_enabled",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.login_max_attempts",
		"rate_limit.login_window",
		"rate_limit.register_max_attempts",
		"rate_limit.register_window",
		"rate_limit.api_max_requests",
		"rate_limit.api_window",
		"lockout.max_attempts",
		"lockout.duration",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"validation.min_password_length",
		"validation.min_password_score",
		"stripe.secret_key",
		"stripe.webhook_secret",
		"stripe.api_url",
		"stripe.webhook_tolerance",
		"media_server.api_url",
		"media_server.api_token",
		"media_server.rtmp_port",
		"media_server.hls_port",
		"media_server.timeout",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot run safely with.
func (c *AppConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(c.JWT.Secret) == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	} else if c.App.Env == "production" && len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("jwt.secret must be at least 32 bytes in production"))
	}
	if c.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("jwt.access_token_ttl must be positive"))
	}
	if c.RateLimit.LoginWindow <= 0 || c.RateLimit.RegisterWindow <= 0 || c.RateLimit.APIWindow <= 0 {
		errs = append(errs, errors.New("rate_limit windows must be positive"))
	}
	if c.Lockout.MaxAttempts <= 0 || c.Lockout.Duration <= 0 {
		errs = append(errs, errors.New("lockout.max_attempts and lockout.duration must be positive"))
	}

	switch c.Events.Driver {
	case "log", "kafka", "nats":
	default:
		errs = append(errs, fmt.Errorf("events.driver %q is not one of log, kafka, nats", c.Events.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ppv-streaming")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.debug", false)
	v.SetDefault("app.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("app.trusted_proxies", []string{})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "ppv")
	v.SetDefault("postgres.password", "ppv_password")
	v.SetDefault("postgres.database", "ppv")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.migrate_on_start", false)
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "ppv:rate-limit")

	v.SetDefault("events.driver", "log")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "ppv")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "ppv")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "ppv-streaming")
	v.SetDefault("jwt.access_token_ttl", "24h")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "ppv-streaming")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.login_window", "15m")
	v.SetDefault("rate_limit.register_max_attempts", 3)
	v.SetDefault("rate_limit.register_window", "1h")
	v.SetDefault("rate_limit.api_max_requests", 60)
	v.SetDefault("rate_limit.api_window", "1m")

	v.SetDefault("lockout.max_attempts", 5)
	v.SetDefault("lockout.duration", "15m")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("validation.min_password_length", 8)
	v.SetDefault("validation.min_password_score", 0)

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.api_url", "")
	v.SetDefault("stripe.webhook_tolerance", "5m")

	v.SetDefault("media_server.api_url", "http://localhost:9997")
	v.SetDefault("media_server.api_token", "")
	v.SetDefault("media_server.rtmp_port", 1935)
	v.SetDefault("media_server.hls_port", 8888)
	v.SetDefault("media_server.timeout", "10s")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "PPV_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
