package chat

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/triage/pkg/formatting"
)

// Config bounds what a patient can submit in a session and how long idle
// sessions are kept.
type Config struct {
	MaxImageSize string `toml:"max_image_size"`
	SessionTTL   string `toml:"session_ttl"`
	MaxSessions  int    `toml:"max_sessions"`
}

// Env names the environment variables that override Config fields.
type Env struct {
	MaxImageSize string
	SessionTTL   string
	MaxSessions  string
}

// MaxImageSizeBytes returns MaxImageSize in bytes.
func (c *Config) MaxImageSizeBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxImageSize)
	return n
}

// SessionTTLDuration returns SessionTTL as a time.Duration.
func (c *Config) SessionTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.SessionTTL)
	return d
}

func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		if err := c.loadEnv(env); err != nil {
			return err
		}
	}
	return c.validate()
}

func (c *Config) Merge(overlay *Config) {
	if overlay.MaxImageSize != "" {
		c.MaxImageSize = overlay.MaxImageSize
	}
	if overlay.SessionTTL != "" {
		c.SessionTTL = overlay.SessionTTL
	}
	if overlay.MaxSessions != 0 {
		c.MaxSessions = overlay.MaxSessions
	}
}

func (c *Config) loadDefaults() {
	if c.MaxImageSize == "" {
		c.MaxImageSize = "10MB"
	}
	if c.SessionTTL == "" {
		c.SessionTTL = "30m"
	}
	if c.MaxSessions == 0 {
		c.MaxSessions = 10
	}
}

func (c *Config) loadEnv(env *Env) error {
	if env.MaxImageSize != "" {
		if v := os.Getenv(env.MaxImageSize); v != "" {
			c.MaxImageSize = v
		}
	}
	if env.SessionTTL != "" {
		if v := os.Getenv(env.SessionTTL); v != "" {
			c.SessionTTL = v
		}
	}
	if env.MaxSessions != "" {
		if v := os.Getenv(env.MaxSessions); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env.MaxSessions, err)
			}
			c.MaxSessions = n
		}
	}
	return nil
}

func (c *Config) validate() error {
	n, err := formatting.ParseBytes(c.MaxImageSize)
	if err != nil {
		return fmt.Errorf("invalid max_image_size: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("max_image_size must be positive")
	}

	ttl, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return fmt.Errorf("invalid session_ttl: %w", err)
	}
	if ttl <= 0 {
		return fmt.Errorf("session_ttl must be positive: %s", c.SessionTTL)
	}

	if c.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must not be negative: %d", c.MaxSessions)
	}
	return nil
}
