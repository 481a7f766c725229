package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses the process environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if !cfg.Razorpay.Stub && (cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "") {
		return nil, fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required unless RAZORPAY_STUB is set")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required")
	}

	return cfg, nil
}
