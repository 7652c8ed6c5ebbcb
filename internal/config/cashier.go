package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CashierConfig configures the cashier front-end
type CashierConfig struct {
	APIURL         string
	TerminalURL    string // Local terminal agent; empty skips the hand-off
	RequestTimeout time.Duration
	PollInterval   time.Duration
	PollTimeout    time.Duration
	LogLevel       string
}

// LoadCashierConfig loads the cashier settings the same way LoadConfig does
func LoadCashierConfig(configName string) (*CashierConfig, error) {
	v := viper.New()
	v.SetDefault("CASHIER_API_URL", "http://localhost:8080")
	v.SetDefault("CASHIER_TERMINAL_URL", "")
	v.SetDefault("CASHIER_REQUEST_TIMEOUT", 15*time.Second)
	v.SetDefault("CASHIER_POLL_INTERVAL", 5*time.Second)
	v.SetDefault("CASHIER_POLL_TIMEOUT", 120*time.Second)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetConfigName(fmt.Sprintf("%s.env", configName))
	v.SetConfigType("env")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := &CashierConfig{
		APIURL:         v.GetString("CASHIER_API_URL"),
		TerminalURL:    v.GetString("CASHIER_TERMINAL_URL"),
		RequestTimeout: v.GetDuration("CASHIER_REQUEST_TIMEOUT"),
		PollInterval:   v.GetDuration("CASHIER_POLL_INTERVAL"),
		PollTimeout:    v.GetDuration("CASHIER_POLL_TIMEOUT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *CashierConfig) validate() error {
	var validationErrors []string
	if c.APIURL == "" {
		validationErrors = append(validationErrors, "CASHIER_API_URL is required")
	}
	if c.RequestTimeout <= 0 {
		validationErrors = append(validationErrors, "CASHIER_REQUEST_TIMEOUT must be greater than 0")
	}
	if c.PollInterval <= 0 {
		validationErrors = append(validationErrors, "CASHIER_POLL_INTERVAL must be greater than 0")
	}
	if c.PollTimeout < c.PollInterval {
		validationErrors = append(validationErrors, "CASHIER_POLL_TIMEOUT must not be shorter than CASHIER_POLL_INTERVAL")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}
	return nil
}
