package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultMessageTemplate is the built-in call-in message used when
// MESSAGE_TEMPLATE is not configured.
const DefaultMessageTemplate = "{patientName}さん、{roomNumber}へお越しください"

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	ChannelSecret      string `mapstructure:"LINE_CHANNEL_SECRET"`
	ChannelAccessToken string `mapstructure:"LINE_CHANNEL_ACCESS_TOKEN"`
	BotContactURL      string `mapstructure:"LINE_BOT_CONTACT_URL"`

	QRCodeExpiryHours int    `mapstructure:"QR_CODE_EXPIRY"`
	MessageTemplate   string `mapstructure:"MESSAGE_TEMPLATE"`

	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int      `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit          string   `mapstructure:"BODY_LIMIT"`
	RequestTimeoutSecs int      `mapstructure:"REQUEST_TIMEOUT_SECS"`
}

// Load reads configuration from a .env file and the environment, once per
// process. Unreadable optional settings fall back to built-in defaults;
// security-relevant settings never do (see Validate).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("QR_CODE_EXPIRY", 24)
	v.SetDefault("MESSAGE_TEMPLATE", DefaultMessageTemplate)
	v.SetDefault("CORS_ORIGINS", []string{"*"})
	v.SetDefault("RATE_LIMIT_RPS", 0)
	v.SetDefault("RATE_LIMIT_BURST", 0)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT_SECS", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("LINE_CHANNEL_SECRET")
	v.BindEnv("LINE_CHANNEL_ACCESS_TOKEN")
	v.BindEnv("LINE_BOT_CONTACT_URL")
	v.BindEnv("QR_CODE_EXPIRY")
	v.BindEnv("MESSAGE_TEMPLATE")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("BODY_LIMIT")
	v.BindEnv("REQUEST_TIMEOUT_SECS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.QRCodeExpiryHours <= 0 {
		cfg.QRCodeExpiryHours = 24
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Outside development
// the channel credentials must be set; a missing secret would silently accept
// forged webhook deliveries, so it is never defaulted.
func (c *Config) Validate() error {
	if c.IsDev() {
		return nil
	}
	var missing []string
	if c.ChannelSecret == "" {
		missing = append(missing, "LINE_CHANNEL_SECRET")
	}
	if c.ChannelAccessToken == "" {
		missing = append(missing, "LINE_CHANNEL_ACCESS_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required when ENV=%q", strings.Join(missing, ", "), c.Env)
	}
	if !strings.Contains(c.MessageTemplate, "{patientName}") {
		return fmt.Errorf("MESSAGE_TEMPLATE must contain the {patientName} placeholder")
	}
	return nil
}
