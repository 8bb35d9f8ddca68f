package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Webhooks      WebhooksConfig      `mapstructure:"webhooks"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	Signing       SigningConfig       `mapstructure:"signing"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type RateLimitConfig struct {
	PublicPerMinute int `mapstructure:"public_per_minute"`
}

// WebhooksConfig drives the processing routine and the retry worker.
type WebhooksConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	BackoffMinutes  []int         `mapstructure:"backoff_minutes"`
	BatchSize       int           `mapstructure:"batch_size"`
	MaxBatchSize    int           `mapstructure:"max_batch_size"`
	InterEventDelay time.Duration `mapstructure:"inter_event_delay"`
	RetryInterval   time.Duration `mapstructure:"retry_interval"`
}

// Backoff returns the configured schedule as durations.
func (c WebhooksConfig) Backoff() []time.Duration {
	out := make([]time.Duration, 0, len(c.BackoffMinutes))
	for _, m := range c.BackoffMinutes {
		out = append(out, time.Duration(m)*time.Minute)
	}
	return out
}

type ProvidersConfig struct {
	ElevenLabsSecret string `mapstructure:"elevenlabs_secret"`
	SignWellSecret   string `mapstructure:"signwell_secret"`
	DailySecret      string `mapstructure:"daily_secret"`
}

type SigningConfig struct {
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// LinkBaseURL is the signing page; links are <base>/<signer_id>?token=<token>.
	LinkBaseURL string `mapstructure:"link_base_url"`
}

type NotificationsConfig struct {
	TargetURL string        `mapstructure:"target_url"`
	Secret    string        `mapstructure:"secret"`
	Source    string        `mapstructure:"source"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.path", "data/hookline.db")
	v.SetDefault("database.max_connections", 4)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "hookline")
	v.SetDefault("jwt.access_token_ttl", time.Hour)

	v.SetDefault("rate_limit.public_per_minute", 600)

	v.SetDefault("webhooks.max_retries", 5)
	v.SetDefault("webhooks.backoff_minutes", []int{1, 5, 15, 60, 240})
	v.SetDefault("webhooks.batch_size", 50)
	v.SetDefault("webhooks.max_batch_size", 100)
	v.SetDefault("webhooks.inter_event_delay", 200*time.Millisecond)
	v.SetDefault("webhooks.retry_interval", 5*time.Minute)

	v.SetDefault("providers.elevenlabs_secret", "")
	v.SetDefault("providers.signwell_secret", "")
	v.SetDefault("providers.daily_secret", "")

	v.SetDefault("signing.token_ttl", 7*24*time.Hour)
	v.SetDefault("signing.link_base_url", "http://localhost:3000/sign")

	v.SetDefault("notifications.target_url", "")
	v.SetDefault("notifications.secret", "")
	v.SetDefault("notifications.source", "/hookline")
	v.SetDefault("notifications.timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")
}

// Load reads the YAML file at path (optional) and overlays environment
// variables, e.g. WEBHOOKS_MAX_RETRIES for webhooks.max_retries.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
