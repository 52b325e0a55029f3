package config

import (
	"strings"
	"testing"

	"gotest.tools/assert"

	"github.com/modelgarden/registry/pkg/check"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NilError(t, check.Validate(DefaultConfig()))
}

func TestValidation(t *testing.T) {
	c := DefaultConfig()
	c.Port = -1
	assert.ErrorContains(t, check.Validate(c), "port must be positive")

	c = DefaultConfig()
	c.HistoryFile = ""
	assert.ErrorContains(t, check.Validate(c), "history_file is required")

	c = DefaultConfig()
	c.Log.Level = "shout"
	assert.ErrorContains(t, check.Validate(c), "not a valid logrus Level")
}

func TestPrintableScrubsPassword(t *testing.T) {
	c := DefaultConfig()
	c.DB.Password = "hunter2"

	printable, err := c.Printable()
	assert.NilError(t, err)
	assert.Assert(t, !strings.Contains(string(printable), "hunter2"))
	assert.Assert(t, strings.Contains(string(printable), "********"))
}

func TestDBURL(t *testing.T) {
	d := DBConfig{
		User: "garden", Password: "pw", Host: "localhost",
		Port: "5432", Name: "registry", SSLMode: "disable",
	}
	assert.Equal(t, d.URL(), "postgres://garden:pw@localhost:5432/registry?sslmode=disable")
}
