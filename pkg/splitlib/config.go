package splitlib

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultUpstreamURL is the PDF splitting service requests are forwarded to.
const DefaultUpstreamURL = "https://pdf-splitter.koyeb.app/split"

const defaultBodyLimitMB = 32

type Config struct {
	UpstreamURL string `yaml:"upstream_url,omitempty"`
	// Timeout in seconds for the upstream call. Zero waits as long as the
	// upstream takes.
	Timeout         int    `yaml:"timeout,omitempty"`
	UserAgent       string `yaml:"user_agent,omitempty"`
	PropagateStatus bool   `yaml:"propagate_status,omitempty"`
	BodyLimitMB     int    `yaml:"body_limit_mb,omitempty"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		UpstreamURL: DefaultUpstreamURL,
		BodyLimitMB: defaultBodyLimitMB,
	}
}

// LoadConfig reads the YAML file at path (if any) over the defaults and
// then applies environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path = strings.TrimSpace(path); path != "" {
		yamlFile, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
			return Config{}, fmt.Errorf("syntax error in config file '%s': %w", path, err)
		}
		log.Printf("INFO: Loaded config from %s", path)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ApplyEnv(os.LookupEnv)
}

// ApplyEnv overrides fields from environment-style variables found through
// lookup. Hosts without a process environment pass their own lookup.
func (c *Config) ApplyEnv(lookup func(key string) (string, bool)) {
	if v, ok := lookup("UPSTREAM_URL"); ok {
		c.UpstreamURL = v
	}
	if v, ok := lookup("USER_AGENT"); ok {
		c.UserAgent = v
	}

	if v, _ := lookup("HTTP_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Timeout = n
		} else {
			log.Printf("WARN: ignoring HTTP_TIMEOUT=%q: %v", v, err)
		}
	}
	if v, _ := lookup("BODY_LIMIT_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BodyLimitMB = n
		} else {
			log.Printf("WARN: ignoring BODY_LIMIT_MB=%q: %v", v, err)
		}
	}
	if v, _ := lookup("PROPAGATE_STATUS"); v != "" {
		c.PropagateStatus = v == "true"
	}
}

// Validate checks that the configuration can be used to build a Splitter.
func (c Config) Validate() error {
	u, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return fmt.Errorf("error parsing upstream URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream URL must be http or https: %s", c.UpstreamURL)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream URL has no host: %s", c.UpstreamURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %d", c.Timeout)
	}
	if c.BodyLimitMB <= 0 {
		return fmt.Errorf("body limit must be positive: %d", c.BodyLimitMB)
	}
	return nil
}

// BodyLimit is the inbound body limit in bytes.
func (c Config) BodyLimit() int {
	return c.BodyLimitMB * 1024 * 1024
}
