package db

import (
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gotest.tools/assert"
)

func TestTrainingRunRowConversion(t *testing.T) {
	row := trainingRunRow{
		ModelName:          "densenet121",
		VersionIx:          1,
		Accelerators:       8,
		Args:               []byte(`{"batch_size": "64"}`),
		Contributor:        "ianstenbit",
		EpochsTrained:      84,
		ScriptName:         "basic_training.py",
		ScriptVersion:      "a2d9f8c",
		TensorboardLogs:    "https://tensorboard.dev/experiment/H1ZZLDvsRgeGDObqwholQQ/",
		ValidationAccuracy: "0.7308",
	}

	run, err := row.toRun()
	assert.NilError(t, err)
	assert.Equal(t, run.Args["batch_size"], "64")
	assert.Equal(t, run.Script.Name, "basic_training.py")

	row.Args = []byte(`{`)
	_, err = row.toRun()
	assert.ErrorContains(t, err, "corrupt args for densenet121/v1")

	row.Args = nil
	run, err = row.toRun()
	assert.NilError(t, err)
	assert.Equal(t, len(run.Args), 0)
}

func TestConnectRetries(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	// Each failed attempt logs before the next one; success stops the loop.
	attempts := 0
	sql, err := connectWithRetries(func() (*sqlx.DB, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection refused")
		}
		return &sqlx.DB{}, nil
	}, 5, 0)
	assert.NilError(t, err)
	assert.Assert(t, sql != nil)
	assert.Equal(t, attempts, 3)
	assert.Equal(t, len(hook.Entries), 2)
	assert.Equal(t, hook.LastEntry().Level, log.WarnLevel)
	assert.ErrorContains(t, hook.LastEntry().Data["error"].(error), "connection refused")

	hook.Reset()
	_, err = connectWithRetries(func() (*sqlx.DB, error) {
		return nil, errors.New("connection refused")
	}, 3, 0)
	assert.ErrorContains(t, err, "could not connect to database after 3 tries")
	assert.Equal(t, len(hook.Entries), 2)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.Assert(t, !isUniqueViolation(nil))
	assert.Assert(t, !isUniqueViolation(errors.New("connection refused")))
	assert.Assert(t, isUniqueViolation(&pgconn.PgError{Code: uniqueViolation}))
	assert.Assert(t, isUniqueViolation(
		errors.Wrap(&pgconn.PgError{Code: uniqueViolation}, "insert failed")))
	assert.Assert(t, !isUniqueViolation(&pgconn.PgError{Code: "23503"}))
}
