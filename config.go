package basicauth

import (
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Config is the server configuration file.
//
//	listen = ":49777"
//	metrics_listen = ":9090"
//	token_ttl = "1h"
//
//	[[users]]
//	name = "alice"
//	password = "s3cret"
type Config struct {
	Listen        string `toml:"listen"`
	MetricsListen string `toml:"metrics_listen"`
	CertFile      string `toml:"cert_file"`
	KeyFile       string `toml:"key_file"`
	TokenSecret   string `toml:"token_secret"`
	TokenTTL      string `toml:"token_ttl"`
	LogFile       string `toml:"log_file"`
	Users         []User `toml:"users"`
}

// User is one entry of the static user table.
type User struct {
	Name     string `toml:"name"`
	Password string `toml:"password"`
}

// DefaultListen is the gRPC listen address used when none is configured.
const DefaultListen = ":49777"

// LoadConfig reads and validates the TOML file at path.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "could not read config %s", path)
	}
	var cfg Config
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "could not parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fills defaults and rejects unusable configurations.
func (c *Config) Validate() error {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("cert_file and key_file must be set together")
	}
	if _, err := c.TTL(); err != nil {
		return err
	}
	if len(c.Users) == 0 {
		return errors.New("at least one user is required")
	}
	seen := make(map[string]bool, len(c.Users))
	for i, u := range c.Users {
		if seen[u.Name] {
			return errors.Errorf("users[%d]: duplicate user", i)
		}
		seen[u.Name] = true
	}
	return nil
}

// TTL returns the parsed token lifetime, zero meaning the default.
func (c *Config) TTL() (time.Duration, error) {
	if c.TokenTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid token_ttl %q", c.TokenTTL)
	}
	if d < 0 {
		return 0, errors.Errorf("invalid token_ttl %q", c.TokenTTL)
	}
	return d, nil
}

// StaticUsers returns the configured user table as a Validator.
func (c *Config) StaticUsers() StaticUsers {
	users := make(StaticUsers, len(c.Users))
	for _, u := range c.Users {
		users[u.Name] = u.Password
	}
	return users
}
