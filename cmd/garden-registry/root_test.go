package main

import (
	"testing"

	"gotest.tools/assert"

	"github.com/modelgarden/registry/internal/config"
)

func TestUnmarshalConfigurationViaViper(t *testing.T) {
	raw := `
port: 9000
history_file: /srv/garden/training_history.json
build_spec_file: /srv/garden/custom_ops.yaml
log:
  level: debug
  color: false
db:
  host: db.internal
  user: garden
  name: registry
`
	expected := config.DefaultConfig()
	expected.Port = 9000
	expected.HistoryFile = "/srv/garden/training_history.json"
	expected.BuildSpecFile = "/srv/garden/custom_ops.yaml"
	expected.Log.Level = "debug"
	expected.Log.Color = false
	expected.DB.Host = "db.internal"
	expected.DB.User = "garden"
	expected.DB.Name = "registry"
	assert.NilError(t, expected.Resolve())

	assert.NilError(t, mergeConfigBytesIntoViper([]byte(raw)))
	conf, err := getConfig(v.AllSettings())
	assert.NilError(t, err)
	assert.DeepEqual(t, conf, expected)
}

func TestUnknownConfigurationKeysAreRejected(t *testing.T) {
	_, err := getConfig(map[string]interface{}{"histroy_file": "oops.json"})
	assert.ErrorContains(t, err, "cannot unmarshal configuration")
}
