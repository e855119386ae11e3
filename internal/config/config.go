// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	BackendBadger = "badger"
	BackendDir    = "dir"
)

// Duration decodes from JSON strings like "5s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	Server struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`

	Repository struct {
		Path          string `json:"path"`    // working tree root
		Backend       string `json:"backend"` // badger, dir
		DefaultBranch string `json:"default_branch"`
	} `json:"repository"`

	Cache struct {
		Blobs int `json:"blobs"`
	} `json:"cache"`

	Merge struct {
		Policy         string   `json:"policy"` // target, source, manual
		SuggestURL     string   `json:"suggest_url"`
		SuggestTimeout Duration `json:"suggest_timeout"`
	} `json:"merge"`

	API struct {
		ReadOnly bool `json:"read_only"`
	} `json:"api"`

	Environment string `json:"environment"` // development, production
	LogLevel    string `json:"log_level"`   // debug, info, warn, error
}

// Default returns a fully populated configuration.
func Default() *Config {
	var c Config
	c.Server.Host = "127.0.0.1"
	c.Server.Port = 6900
	c.Repository.Path = "."
	c.Repository.Backend = BackendBadger
	c.Repository.DefaultBranch = "main"
	c.Cache.Blobs = 1000
	c.Merge.Policy = "target"
	c.Merge.SuggestTimeout = Duration(10 * time.Second)
	c.Environment = "development"
	c.LogLevel = "info"
	return &c
}

// Path returns the environment specific config file, selected by TWIG_ENV.
func Path() string {
	env := os.Getenv("TWIG_ENV")
	if env == "" {
		env = "development"
	}
	return fmt.Sprintf("config/config.%s.json", env)
}

// Load overlays the file at path onto Default. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	switch c.Repository.Backend {
	case BackendBadger, BackendDir:
	default:
		return fmt.Errorf("unknown repository backend %q", c.Repository.Backend)
	}
	switch c.Merge.Policy {
	case "target", "source", "manual":
	default:
		return fmt.Errorf("unknown merge policy %q", c.Merge.Policy)
	}
	if c.Repository.DefaultBranch == "" {
		return fmt.Errorf("default branch is required")
	}
	if c.Cache.Blobs <= 0 {
		return fmt.Errorf("blob cache size must be positive")
	}
	return nil
}

// Address is the listen address of the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
