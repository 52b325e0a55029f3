// Package config holds the registry's master configuration, populated, in
// order, by defaults, the configuration file, environment variables, and
// command line flags.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/modelgarden/registry/pkg/check"
	"github.com/modelgarden/registry/pkg/logger"
)

const (
	defaultPort        = 8092
	defaultHistoryFile = "/var/lib/garden/training_history.json"
)

// DefaultDBConfig returns the default configuration of the database.
func DefaultDBConfig() *DBConfig {
	return &DBConfig{
		Port:    "5432",
		SSLMode: "disable",
	}
}

// DBConfig hosts configuration fields of the database. An empty host selects
// the file-backed store instead.
type DBConfig struct {
	User     string `json:"user"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Name     string `json:"name"`
	SSLMode  string `json:"ssl_mode"`
}

// URL renders the connection string of the configured database.
func (d DBConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// DefaultConfig returns the default configuration of the registry.
func DefaultConfig() *Config {
	return &Config{
		ConfigFile:  "",
		Log:         *logger.DefaultConfig(),
		DB:          *DefaultDBConfig(),
		Port:        defaultPort,
		HistoryFile: defaultHistoryFile,
		ClusterName: "",
	}
}

// Config is the configuration of the registry.
type Config struct {
	ConfigFile    string        `json:"config_file"`
	Log           logger.Config `json:"log"`
	DB            DBConfig      `json:"db"`
	Port          int           `json:"port"`
	HistoryFile   string        `json:"history_file"`
	BuildSpecFile string        `json:"build_spec_file"`
	ClusterName   string        `json:"cluster_name"`
	EnableCors    bool          `json:"enable_cors"`
}

// Validate implements the check.Validatable interface.
func (c Config) Validate() []error {
	return []error{
		check.GreaterThan(c.Port, 0, "port must be positive"),
		check.NotEmpty(c.HistoryFile, "history_file is required"),
	}
}

// Resolve normalizes the configuration after all sources are merged.
func (c *Config) Resolve() error {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	return nil
}

// Printable returns a JSON-formatted representation of the configuration with
// secrets scrubbed, suitable for logging.
func (c Config) Printable() ([]byte, error) {
	const hiddenValue = "********"
	if c.DB.Password != "" {
		c.DB.Password = hiddenValue
	}

	configMap := map[string]interface{}{}
	bs, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "unable to marshal config to yaml")
	}
	if err := yaml.Unmarshal(bs, &configMap); err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal config")
	}
	printable, err := json.Marshal(configMap)
	if err != nil {
		return nil, errors.Wrap(err, "unable to marshal config to json")
	}
	return printable, nil
}
