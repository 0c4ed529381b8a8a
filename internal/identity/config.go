package identity

import (
	"fmt"
	"os"
	"time"
)

// Config describes the OpenID Connect issuer whose ID tokens are accepted.
// When JWKSURL is empty the key set is found through issuer discovery,
// retried every DiscoveryRetry (doubling up to a minute) until
// it succeeds.
type Config struct {
	Issuer         string `toml:"issuer"`
	ClientID       string `toml:"client_id"`
	JWKSURL        string `toml:"jwks_url"`
	RoleClaim      string `toml:"role_claim"`
	DiscoveryRetry string `toml:"discovery_retry"`
}

// Env names the environment variables that override Config fields.
type Env struct {
	Issuer         string
	ClientID       string
	JWKSURL        string
	RoleClaim      string
	DiscoveryRetry string
}

// DiscoveryRetryDuration returns DiscoveryRetry as a time.Duration.
func (c *Config) DiscoveryRetryDuration() time.Duration {
	d, _ := time.ParseDuration(c.DiscoveryRetry)
	return d
}

// Finalize applies defaults, environment overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
	if overlay.JWKSURL != "" {
		c.JWKSURL = overlay.JWKSURL
	}
	if overlay.RoleClaim != "" {
		c.RoleClaim = overlay.RoleClaim
	}
	if overlay.DiscoveryRetry != "" {
		c.DiscoveryRetry = overlay.DiscoveryRetry
	}
}

func (c *Config) loadDefaults() {
	if c.RoleClaim == "" {
		c.RoleClaim = "role"
	}
	if c.DiscoveryRetry == "" {
		c.DiscoveryRetry = "5s"
	}
}

func (c *Config) loadEnv(env *Env) {
	set := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	set(env.Issuer, &c.Issuer)
	set(env.ClientID, &c.ClientID)
	set(env.JWKSURL, &c.JWKSURL)
	set(env.RoleClaim, &c.RoleClaim)
	set(env.DiscoveryRetry, &c.DiscoveryRetry)
}

func (c *Config) validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("issuer required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id required")
	}
	d, err := time.ParseDuration(c.DiscoveryRetry)
	if err != nil {
		return fmt.Errorf("invalid discovery_retry: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("discovery_retry must be positive: %s", c.DiscoveryRetry)
	}
	return nil
}
