package config

import (
	"os"
	"strconv"
	"time"
)

// ApplyEnv overrides fields from RTVOICE_* environment variables.
func (c *Config) ApplyEnv() {
	if v := getEnv("RTVOICE_PROVIDER"); v != "" {
		c.Provider = Provider(v)
	}
	if v := getEnv("RTVOICE_TRANSPORT"); v != "" {
		c.Transport = TransportKind(v)
	}
	if v := getEnv("RTVOICE_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := getEnv("RTVOICE_CREDENTIAL_URL"); v != "" {
		c.CredentialURL = v
	}
	if v := getEnv("RTVOICE_MODEL"); v != "" {
		c.Model = v
	}
	if v := getEnv("RTVOICE_VOICE"); v != "" {
		c.Voice = v
	}
	if v := getEnv("RTVOICE_LANGUAGE"); v != "" {
		c.Language = v
	}
	if v := getEnv("RTVOICE_INSTRUCTIONS"); v != "" {
		c.Instructions = v
	}
	if v := getEnv("RTVOICE_OPENING_LINE"); v != "" {
		c.OpeningLine = v
	}
	c.MaxDuration = getEnvDuration("RTVOICE_MAX_DURATION", c.MaxDuration)
	c.MaxTurns = getEnvInt("RTVOICE_MAX_TURNS", c.MaxTurns)
}

// FromEnv builds a config from the environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	cfg.ApplyEnv()
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func getEnv(key string) string {
	return os.Getenv(key)
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
