package history

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/modelgarden/registry/pkg/model"
)

// Store persists the training-history ledger. Implementations must only ever
// add records; nothing in the ledger is mutated or deleted after creation.
type Store interface {
	// Load reads the whole ledger.
	Load() (*model.HistoryDocument, error)
	// AppendRun persists one new run under the given model and version label.
	AppendRun(modelName string, label string, run model.TrainingRun) error
	// PutScriptAuthors records the ordered authors of a script not seen
	// before.
	PutScriptAuthors(script string, authors []string) error
}

// FileStore keeps the ledger as a single JSON document on disk, the form
// external tooling such as leaderboard generators consumes directly.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements the Store interface. A missing file is an empty ledger.
func (f *FileStore) Load() (*model.HistoryDocument, error) {
	bs, err := ioutil.ReadFile(f.path) // #nosec G304
	if os.IsNotExist(err) {
		log.Warnf("no training history at %s, starting empty", f.path)
		return emptyDocument(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "error reading training history")
	}

	doc := emptyDocument()
	if err := json.Unmarshal(bs, doc); err != nil {
		return nil, errors.Wrapf(err, "cannot unmarshal training history at %s", f.path)
	}
	// A null table in the document unmarshals to a nil map.
	if doc.Models == nil {
		doc.Models = map[string]model.ModelHistory{}
	}
	if doc.ScriptAuthors == nil {
		doc.ScriptAuthors = map[string][]string{}
	}
	return doc, nil
}

// AppendRun implements the Store interface.
func (f *FileStore) AppendRun(modelName string, label string, run model.TrainingRun) error {
	return f.rewrite(func(doc *model.HistoryDocument) error {
		history := doc.Models[modelName]
		if history == nil {
			history = model.ModelHistory{}
			doc.Models[modelName] = history
		}
		if _, ok := history[label]; ok {
			return errors.Errorf("version %s of model %s already recorded", label, modelName)
		}
		history[label] = run
		return nil
	})
}

// PutScriptAuthors implements the Store interface.
func (f *FileStore) PutScriptAuthors(script string, authors []string) error {
	return f.rewrite(func(doc *model.HistoryDocument) error {
		if _, ok := doc.ScriptAuthors[script]; ok {
			return errors.Errorf("authors of script %s already recorded", script)
		}
		doc.ScriptAuthors[script] = authors
		return nil
	})
}

// rewrite applies a mutation to the on-disk document and writes the result
// back atomically, so a crashed write never leaves a torn ledger behind.
func (f *FileStore) rewrite(mutate func(doc *model.HistoryDocument) error) error {
	doc, err := f.Load()
	if err != nil {
		return err
	}
	if err := mutate(doc); err != nil {
		return err
	}

	bs, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return errors.Wrap(err, "cannot marshal training history")
	}

	tmp, err := ioutil.TempFile(filepath.Dir(f.path), ".training_history-*")
	if err != nil {
		return errors.Wrap(err, "cannot create temporary history file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(bs); err != nil {
		tmp.Close()
		return errors.Wrap(err, "cannot write training history")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "cannot close training history")
	}
	return errors.Wrap(os.Rename(tmp.Name(), f.path), "cannot replace training history")
}

func emptyDocument() *model.HistoryDocument {
	return &model.HistoryDocument{
		Models:        map[string]model.ModelHistory{},
		ScriptAuthors: map[string][]string{},
	}
}
