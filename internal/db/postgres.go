// Package db provides the Postgres-backed copy of the training-history
// ledger for deployments where the registry is not the only writer of the
// history file.
package db

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib" // Import the Postgres driver.
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/modelgarden/registry/pkg/model"
)

// uniqueViolation is the error code that Postgres uses to indicate that an
// attempted insert violates a uniqueness constraint.
const uniqueViolation = "23505"

// PgStore is a Postgres-backed history store. The type definition is needed
// to define methods.
type PgStore struct {
	sql *sqlx.DB
}

// ConnectPostgres connects to a Postgres database and ensures the ledger
// schema exists.
func ConnectPostgres(url string) (*PgStore, error) {
	sql, err := connectWithRetries(func() (*sqlx.DB, error) {
		return sqlx.Connect("pgx", url)
	}, 15, 4*time.Second)
	if err != nil {
		return nil, err
	}
	store := &PgStore{sql: sql}
	if err := store.ensureSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func connectWithRetries(connect func() (*sqlx.DB, error), tries int, wait time.Duration) (*sqlx.DB, error) {
	numTries := 0
	for {
		sql, err := connect()
		if err == nil {
			return sql, nil
		}
		numTries++
		if numTries >= tries {
			return nil, errors.Wrapf(err, "could not connect to database after %v tries", numTries)
		}
		log.WithError(err).Warnf("failed to connect to postgres, trying again in %s", wait)
		time.Sleep(wait)
	}
}

// Close closes the underlying connection.
func (db *PgStore) Close() error {
	return db.sql.Close()
}

func (db *PgStore) ensureSchema() error {
	_, err := db.sql.Exec(`
CREATE TABLE IF NOT EXISTS training_runs (
	model_name          TEXT    NOT NULL,
	version_ix          INTEGER NOT NULL,
	accelerators        INTEGER NOT NULL,
	args                JSONB   NOT NULL DEFAULT '{}',
	contributor         TEXT    NOT NULL,
	epochs_trained      INTEGER NOT NULL,
	script_name         TEXT    NOT NULL,
	script_version      TEXT    NOT NULL,
	tensorboard_logs    TEXT    NOT NULL,
	validation_accuracy TEXT    NOT NULL,
	PRIMARY KEY (model_name, version_ix)
);
CREATE TABLE IF NOT EXISTS script_authors (
	script_name TEXT    NOT NULL,
	position    INTEGER NOT NULL,
	contributor TEXT    NOT NULL,
	PRIMARY KEY (script_name, position)
)`)
	return errors.Wrap(err, "error ensuring ledger schema")
}

// trainingRunRow is a row of the training_runs table.
type trainingRunRow struct {
	ModelName          string `db:"model_name"`
	VersionIx          int    `db:"version_ix"`
	Accelerators       int    `db:"accelerators"`
	Args               []byte `db:"args"`
	Contributor        string `db:"contributor"`
	EpochsTrained      int    `db:"epochs_trained"`
	ScriptName         string `db:"script_name"`
	ScriptVersion      string `db:"script_version"`
	TensorboardLogs    string `db:"tensorboard_logs"`
	ValidationAccuracy string `db:"validation_accuracy"`
}

func (r trainingRunRow) toRun() (model.TrainingRun, error) {
	args := map[string]string{}
	if len(r.Args) > 0 {
		if err := json.Unmarshal(r.Args, &args); err != nil {
			return model.TrainingRun{}, errors.Wrapf(
				err, "corrupt args for %s/v%d", r.ModelName, r.VersionIx)
		}
	}
	return model.TrainingRun{
		Accelerators:       r.Accelerators,
		Args:               args,
		Contributor:        r.Contributor,
		EpochsTrained:      r.EpochsTrained,
		Script:             model.ScriptRef{Name: r.ScriptName, Version: r.ScriptVersion},
		TensorboardLogs:    r.TensorboardLogs,
		ValidationAccuracy: r.ValidationAccuracy,
	}, nil
}

// Load implements the history.Store interface.
func (db *PgStore) Load() (*model.HistoryDocument, error) {
	doc := &model.HistoryDocument{
		Models:        map[string]model.ModelHistory{},
		ScriptAuthors: map[string][]string{},
	}

	var runs []trainingRunRow
	if err := db.sql.Select(&runs,
		`SELECT model_name, version_ix, accelerators, args, contributor, epochs_trained,
			script_name, script_version, tensorboard_logs, validation_accuracy
		FROM training_runs ORDER BY model_name, version_ix`); err != nil {
		return nil, errors.Wrap(err, "error loading training runs")
	}
	for _, row := range runs {
		run, err := row.toRun()
		if err != nil {
			return nil, err
		}
		history := doc.Models[row.ModelName]
		if history == nil {
			history = model.ModelHistory{}
			doc.Models[row.ModelName] = history
		}
		history[model.VersionLabel(row.VersionIx)] = run
	}

	var authors []struct {
		ScriptName  string `db:"script_name"`
		Contributor string `db:"contributor"`
	}
	if err := db.sql.Select(&authors,
		`SELECT script_name, contributor FROM script_authors
		ORDER BY script_name, position`); err != nil {
		return nil, errors.Wrap(err, "error loading script authors")
	}
	for _, row := range authors {
		doc.ScriptAuthors[row.ScriptName] = append(doc.ScriptAuthors[row.ScriptName], row.Contributor)
	}

	return doc, nil
}

// AppendRun implements the history.Store interface. The primary key on
// (model_name, version_ix) is what enforces the ledger's append-only rule
// against concurrent writers.
func (db *PgStore) AppendRun(modelName string, label string, run model.TrainingRun) error {
	index, err := model.ParseVersionLabel(label)
	if err != nil {
		return err
	}
	args, err := json.Marshal(run.Args)
	if err != nil {
		return errors.Wrap(err, "cannot marshal run args")
	}

	_, err = db.sql.Exec(`
INSERT INTO training_runs (model_name, version_ix, accelerators, args, contributor,
	epochs_trained, script_name, script_version, tensorboard_logs, validation_accuracy)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		modelName, index, run.Accelerators, args, run.Contributor, run.EpochsTrained,
		run.Script.Name, run.Script.Version, run.TensorboardLogs, run.ValidationAccuracy)
	if isUniqueViolation(err) {
		return errors.Errorf("version %s of model %s already recorded", label, modelName)
	}
	return errors.Wrapf(err, "error appending run %s/%s", modelName, label)
}

// PutScriptAuthors implements the history.Store interface.
func (db *PgStore) PutScriptAuthors(script string, authors []string) error {
	tx, err := db.sql.Beginx()
	if err != nil {
		return errors.Wrap(err, "error starting transaction")
	}
	defer func() {
		// Rolling back a committed transaction is a no-op.
		_ = tx.Rollback()
	}()

	for position, contributor := range authors {
		if _, err := tx.Exec(
			`INSERT INTO script_authors (script_name, position, contributor) VALUES ($1, $2, $3)`,
			script, position, contributor); err != nil {
			if isUniqueViolation(err) {
				return errors.Errorf("authors of script %s already recorded", script)
			}
			return errors.Wrapf(err, "error recording authors of script %s", script)
		}
	}
	return errors.Wrap(tx.Commit(), "error committing script authors")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
