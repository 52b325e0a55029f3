package logger

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config controls the registry's process-wide logrus setup. It is embedded in
// the server configuration under the "log" key.
type Config struct {
	Level string `json:"level"`
	Color bool   `json:"color"`
}

// DefaultConfig returns the logging defaults used before any configuration is
// read.
func DefaultConfig() *Config {
	return &Config{
		Level: logrus.InfoLevel.String(),
		Color: true,
	}
}

// Resolve parses the configured level name.
func (c Config) Resolve() (logrus.Level, error) {
	level, err := logrus.ParseLevel(c.Level)
	return level, errors.Wrapf(err, "invalid log level %q", c.Level)
}

// Validate implements the check.Validatable interface.
func (c Config) Validate() []error {
	_, err := c.Resolve()
	return []error{err}
}

// SetLogrus applies the configuration to the global logrus logger. The level
// must have passed Validate.
func SetLogrus(c Config) {
	level, err := c.Resolve()
	if err != nil {
		panic(err.Error())
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   true,
		DisableColors: !c.Color,
	})
}
