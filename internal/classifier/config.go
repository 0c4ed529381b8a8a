package classifier

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// Config locates the remote classification service.
type Config struct {
	BaseURL   string `toml:"base_url"`
	TextPath  string `toml:"text_path"`
	ImagePath string `toml:"image_path"`
	Timeout   string `toml:"timeout"`
}

// Env names the environment variables that override Config fields.
type Env struct {
	BaseURL   string
	TextPath  string
	ImagePath string
	Timeout   string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
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
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.TextPath != "" {
		c.TextPath = overlay.TextPath
	}
	if overlay.ImagePath != "" {
		c.ImagePath = overlay.ImagePath
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:5000"
	}
	if c.TextPath == "" {
		c.TextPath = "/analyze-text"
	}
	if c.ImagePath == "" {
		c.ImagePath = "/chat"
	}
	if c.Timeout == "" {
		c.Timeout = "60s"
	}
}

func (c *Config) loadEnv(env *Env) {
	for name, dst := range map[string]*string{
		env.BaseURL:   &c.BaseURL,
		env.TextPath:  &c.TextPath,
		env.ImagePath: &c.ImagePath,
		env.Timeout:   &c.Timeout,
	} {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url: %q", c.BaseURL)
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("timeout must be positive: %s", c.Timeout)
	}
	return nil
}
