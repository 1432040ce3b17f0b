package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Cloudinary CloudinaryConfig `mapstructure:"cloudinary"`
	Email      EmailConfig      `mapstructure:"email"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Onboarding OnboardingConfig `mapstructure:"onboarding"`
	Sessions   SessionsConfig   `mapstructure:"sessions"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Port     string `mapstructure:"port"`
	Timezone string `mapstructure:"timezone"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StripeConfig struct {
	SecretKey          string  `mapstructure:"secret_key"`
	WebhookSecret      string  `mapstructure:"webhook_secret"`
	PlatformFeePercent float64 `mapstructure:"platform_fee_percent"`
}

type CloudinaryConfig struct {
	URL    string `mapstructure:"url"`
	Folder string `mapstructure:"folder"`
}

type EmailConfig struct {
	BrevoAPIKey string `mapstructure:"brevo_api_key"`
	Sender      string `mapstructure:"sender"`
	SenderName  string `mapstructure:"sender_name"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type OnboardingConfig struct {
	AutosaveDelay      time.Duration `mapstructure:"autosave_delay"`
	StatusCheckTimeout time.Duration `mapstructure:"status_check_timeout"`
	ProgressTTL        time.Duration `mapstructure:"progress_ttl"`
}

type SessionsConfig struct {
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads .env, an optional configs/config.yaml and the environment.
// APP_PORT overrides app.port, STRIPE_SECRET_KEY overrides stripe.secret_key.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: .env file not found, reading from system environment variables")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// every key needs a default so AutomaticEnv can see it during Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "DanceHub")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.timezone", "UTC")

	v.SetDefault("database.dsn", "")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.platform_fee_percent", 5.0)

	v.SetDefault("cloudinary.url", "")
	v.SetDefault("cloudinary.folder", "dancehub/identity-documents")

	v.SetDefault("email.brevo_api_key", "")
	v.SetDefault("email.sender", "no-reply@dancehub.app")
	v.SetDefault("email.sender_name", "DanceHub")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("onboarding.autosave_delay", time.Second)
	v.SetDefault("onboarding.status_check_timeout", 10*time.Second)
	v.SetDefault("onboarding.progress_ttl", 30*24*time.Hour)

	v.SetDefault("sessions.idle_ttl", 2*time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func validateConfig(cfg *Config) error {
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if cfg.Stripe.SecretKey == "" {
		return fmt.Errorf("stripe.secret_key is required")
	}
	if cfg.Stripe.PlatformFeePercent < 0 || cfg.Stripe.PlatformFeePercent >= 100 {
		return fmt.Errorf("stripe.platform_fee_percent must be in [0,100)")
	}
	if cfg.Onboarding.StatusCheckTimeout <= 0 {
		return fmt.Errorf("onboarding.status_check_timeout must be positive")
	}
	return nil
}
