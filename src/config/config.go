package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"vms/src/types"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const MPESA_TIMESTAMP_FORMAT = "20060102150405"

// DarajaConfig holds the provider credentials and endpoints. It is built once
// at process start and injected into the gateway client; validation happens
// here, not per call.
type DarajaConfig struct {
	Env            string
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

// NewDarajaConfigFromEnv reads MPESA_* variables and fails fast when any
// required value is missing or the callback URL is not well-formed HTTPS.
func NewDarajaConfigFromEnv() (*DarajaConfig, error) {
	cfg := &DarajaConfig{
		Env:            strings.ToLower(os.Getenv("MPESA_ENV")),
		ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		Shortcode:      os.Getenv("MPESA_SHORTCODE"),
		Passkey:        os.Getenv("MPESA_PASSKEY"),
		CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
	}
	if cfg.Env == "" {
		cfg.Env = "sandbox"
	}
	if cfg.Env == "sandbox" {
		cfg.BaseURL = "https://sandbox.safaricom.co.ke"
	} else {
		cfg.BaseURL = "https://api.safaricom.co.ke"
	}
	if base := os.Getenv("MPESA_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}

	timeoutSecs := 30
	if v := os.Getenv("MPESA_TIMEOUT"); v != "" {
		atoi, err := strconv.Atoi(v)
		if err != nil {
			return nil, types.NewValidationError("MPESA_TIMEOUT is not a number: %s", v)
		}
		timeoutSecs = atoi
	}
	cfg.Timeout = time.Duration(timeoutSecs) * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *DarajaConfig) Validate() error {
	missing := []string{}
	if c.ConsumerKey == "" {
		missing = append(missing, "MPESA_CONSUMER_KEY")
	}
	if c.ConsumerSecret == "" {
		missing = append(missing, "MPESA_CONSUMER_SECRET")
	}
	if c.Shortcode == "" {
		missing = append(missing, "MPESA_SHORTCODE")
	}
	if c.Passkey == "" {
		missing = append(missing, "MPESA_PASSKEY")
	}
	if c.CallbackURL == "" {
		missing = append(missing, "MPESA_CALLBACK_URL")
	}
	if len(missing) > 0 {
		return types.NewValidationError("missing required M-Pesa configuration: %s", strings.Join(missing, ", "))
	}
	u, err := url.Parse(c.CallbackURL)
	if err != nil || u.Host == "" {
		return types.NewValidationError("MPESA_CALLBACK_URL is not a valid URL: %s", c.CallbackURL)
	}
	if u.Scheme != "https" {
		return types.NewValidationError("MPESA_CALLBACK_URL must use https, got %s", u.Scheme)
	}
	return nil
}
