// Package history owns the append-only ledger of model-training runs: every
// recorded execution of a training script, keyed by model name and version
// label, plus the table of script authorship.
package history

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/modelgarden/registry/pkg/check"
	"github.com/modelgarden/registry/pkg/model"
)

// Service answers queries over the ledger and appends new runs. All reads are
// served from memory; the store is the durable copy.
type Service struct {
	mu    sync.RWMutex
	store Store
	doc   *model.HistoryDocument
}

// NewService loads the ledger from the store.
func NewService(store Store) (*Service, error) {
	doc, err := store.Load()
	if err != nil {
		return nil, err
	}
	if err := check.Validate(doc); err != nil {
		log.WithError(err).Warn("loaded training history fails validation")
	}
	return &Service{store: store, doc: doc}, nil
}

// ErrNotFound is returned for lookups of models, versions, or scripts that
// were never recorded.
var ErrNotFound = errors.New("not found")

// VersionedRun pairs a run with the version label it produced.
type VersionedRun struct {
	Version string            `json:"version"`
	Run     model.TrainingRun `json:"run"`
}

// ModelSummary describes one model's presence in the ledger.
type ModelSummary struct {
	Name          string `json:"name"`
	NumVersions   int    `json:"num_versions"`
	LatestVersion string `json:"latest_version"`
}

// Models lists all recorded models, sorted by name.
func (s *Service) Models() []ModelSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]ModelSummary, 0, len(s.doc.Models))
	for _, name := range s.doc.ModelNames() {
		history := s.doc.Models[name]
		labels := history.Labels()
		summaries = append(summaries, ModelSummary{
			Name:          name,
			NumVersions:   len(labels),
			LatestVersion: labels[len(labels)-1],
		})
	}
	return summaries
}

// Versions returns the recorded runs of one model in version order.
func (s *Service) Versions(modelName string) ([]VersionedRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.doc.Models[modelName]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "model %q", modelName)
	}
	runs := make([]VersionedRun, 0, len(history))
	for _, label := range history.Labels() {
		runs = append(runs, VersionedRun{Version: label, Run: history[label]})
	}
	return runs, nil
}

// Run returns a single training run record.
func (s *Service) Run(modelName string, label string) (model.TrainingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.doc.Models[modelName]
	if !ok {
		return model.TrainingRun{}, errors.Wrapf(ErrNotFound, "model %q", modelName)
	}
	run, ok := history[label]
	if !ok {
		return model.TrainingRun{}, errors.Wrapf(
			ErrNotFound, "version %q of model %q", label, modelName)
	}
	return run, nil
}

// AppendRun validates the run, assigns it the model's next version label, and
// persists it. The label is always assigned here; callers cannot choose one,
// which is what keeps labels dense and records immutable. If the run's script
// has no authorship entry yet, the contributor is recorded as its author.
func (s *Service) AppendRun(modelName string, run model.TrainingRun) (string, error) {
	if modelName == "" {
		return "", errors.New("model name is required")
	}
	if err := check.Validate(run); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.ScriptAuthors[run.Script.Name]; !ok {
		if err := s.store.PutScriptAuthors(run.Script.Name, []string{run.Contributor}); err != nil {
			return "", err
		}
		s.doc.ScriptAuthors[run.Script.Name] = []string{run.Contributor}
	}

	history := s.doc.Models[modelName]
	label := history.NextLabel()
	if err := s.store.AppendRun(modelName, label, run); err != nil {
		return "", err
	}

	if history == nil {
		history = model.ModelHistory{}
		s.doc.Models[modelName] = history
	}
	history[label] = run

	log.WithFields(log.Fields{
		"model":       modelName,
		"version":     label,
		"contributor": run.Contributor,
	}).Info("recorded training run")
	return label, nil
}

// Scripts lists all scripts with recorded authorship, sorted by name.
func (s *Service) Scripts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.ScriptNames()
}

// AuthorsOf returns the ordered contributors who authored a script.
func (s *Service) AuthorsOf(script string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	authors, ok := s.doc.ScriptAuthors[script]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "script %q", script)
	}
	return authors, nil
}

// Verify runs the full property set over the ledger: dense version labels,
// required fields, accuracy range, and script cross-references.
func (s *Service) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return check.Validate(s.doc)
}
