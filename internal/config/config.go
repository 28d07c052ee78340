package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Port    string `mapstructure:"PORT"`
	GinMode string `mapstructure:"GIN_MODE"`

	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	ClientURL string `mapstructure:"CLIENT_URL"`

	// Backend environment endpoints. Empty endpoints leave the environment
	// registered but undialable.
	DevEndpoint     string `mapstructure:"DEV_GRPC_ENDPOINT"`
	PreprodEndpoint string `mapstructure:"PREPROD_GRPC_ENDPOINT"`
	ProdEndpoint    string `mapstructure:"PROD_GRPC_ENDPOINT"`

	// DefaultEnvironment is the fallback when a user has no environment
	// entitlements.
	DefaultEnvironment string `mapstructure:"DEFAULT_ENVIRONMENT"`

	// Redis persists per-user environment selections. Optional; an in-memory
	// cache is used when unset.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// AMQP carries invitation events to the mail notifier. Optional.
	AMQPURL             string `mapstructure:"AMQP_URL"`
	InvitationQueueName string `mapstructure:"INVITATION_QUEUE_NAME"`

	// SMTP settings for invitation emails. Required only when AMQP is set.
	SMTPHost   string `mapstructure:"SMTP_HOST"`
	SMTPPort   string `mapstructure:"SMTP_PORT"`
	SMTPUser   string `mapstructure:"SMTP_USER"`
	SMTPPass   string `mapstructure:"SMTP_PASS"`
	MailSender string `mapstructure:"MAIL_SENDER"`
}

// LoadConfig loads configuration from environment variables using Viper.
func LoadConfig() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("DEFAULT_ENVIRONMENT", "dev")
	viper.SetDefault("INVITATION_QUEUE_NAME", "invitation-events")
	viper.SetDefault("SMTP_PORT", "2525")

	for _, key := range []string{
		"PORT", "GIN_MODE",
		"FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
		"CLIENT_URL",
		"DEV_GRPC_ENDPOINT", "PREPROD_GRPC_ENDPOINT", "PROD_GRPC_ENDPOINT", "DEFAULT_ENVIRONMENT",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"AMQP_URL", "INVITATION_QUEUE_NAME",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "MAIL_SENDER",
	} {
		viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	if cfg.FirebaseProjectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID is required")
	}
	if cfg.GoogleApplicationCredentials == "" && cfg.FirebaseServiceAccountJSONBase64 == "" {
		return nil, errors.New("either GOOGLE_APPLICATION_CREDENTIALS or FIREBASE_SERVICE_ACCOUNT_JSON_BASE64 is required")
	}
	if cfg.AMQPURL != "" && (cfg.SMTPUser == "" || cfg.SMTPPass == "" || cfg.MailSender == "") {
		return nil, errors.New("SMTP_USER, SMTP_PASS and MAIL_SENDER are required when AMQP_URL is set")
	}

	return &cfg, nil
}
