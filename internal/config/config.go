// Package config loads server settings from MEDIPORT_* environment
// variables with development defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the api binary needs to start.
type Config struct {
	Addr        string
	DatabaseDSN string

	AuthSecret string
	Issuer     string

	PatientTokenTTL time.Duration
	DoctorTokenTTL  time.Duration
	GrantTTL        time.Duration

	RatePerSec   float64
	RateBurst    int
	MaxBodyBytes int64
}

var errMissingSecret = errors.New("config: MEDIPORT_AUTH_SECRET is not set")

// Load reads the environment. Only the signing secret is mandatory;
// everything else falls back to a development default.
func Load() (Config, error) {
	cfg := Config{
		Addr:            envString("MEDIPORT_ADDR", ":8080"),
		DatabaseDSN:     os.Getenv("MEDIPORT_PG_DSN"),
		AuthSecret:      strings.TrimSpace(os.Getenv("MEDIPORT_AUTH_SECRET")),
		Issuer:          envString("MEDIPORT_TOKEN_ISSUER", "mediport"),
		PatientTokenTTL: 7 * 24 * time.Hour,
		DoctorTokenTTL:  2 * time.Hour,
		GrantTTL:        24 * time.Hour,
		RatePerSec:      50,
		RateBurst:       100,
		MaxBodyBytes:    1 << 20,
	}

	if cfg.AuthSecret == "" {
		return Config{}, errMissingSecret
	}

	var err error
	if cfg.PatientTokenTTL, err = envDuration("MEDIPORT_PATIENT_TOKEN_TTL", cfg.PatientTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.DoctorTokenTTL, err = envDuration("MEDIPORT_DOCTOR_TOKEN_TTL", cfg.DoctorTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.GrantTTL, err = envDuration("MEDIPORT_GRANT_TTL", cfg.GrantTTL); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = envInt("MEDIPORT_RATE_BURST", cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = envFloat("MEDIPORT_RATE_PER_SEC", cfg.RatePerSec); err != nil {
		return Config{}, err
	}
	if cfg.MaxBodyBytes, err = envInt64("MEDIPORT_MAX_BODY_BYTES", cfg.MaxBodyBytes); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envInt64(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}
