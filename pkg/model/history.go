package model

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/modelgarden/registry/pkg/check"
)

// ScriptRef identifies the training script that produced a run, pinned to the
// revision it ran at.
type ScriptRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Validate implements the check.Validatable interface.
func (s ScriptRef) Validate() []error {
	return []error{
		check.NotEmpty(s.Name, "script name is required"),
		check.NotEmpty(s.Version, "script version is required"),
	}
}

// TrainingRun is one recorded execution of a training script for a given
// model version, together with its resulting accuracy and metadata.
type TrainingRun struct {
	Accelerators       int               `json:"accelerators"`
	Args               map[string]string `json:"args"`
	Contributor        string            `json:"contributor"`
	EpochsTrained      int               `json:"epochs_trained"`
	Script             ScriptRef         `json:"script"`
	TensorboardLogs    string            `json:"tensorboard_logs"`
	ValidationAccuracy string            `json:"validation_accuracy"`
}

// Accuracy returns the parsed validation accuracy. The value is stored as a
// string to preserve the precision it was recorded with.
func (r TrainingRun) Accuracy() (float64, error) {
	accuracy, err := strconv.ParseFloat(r.ValidationAccuracy, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot parse validation accuracy %q", r.ValidationAccuracy)
	}
	return accuracy, nil
}

// Validate implements the check.Validatable interface.
func (r TrainingRun) Validate() []error {
	errs := []error{
		check.GreaterThan(r.Accelerators, 0, "accelerators must be a positive integer"),
		check.GreaterThan(r.EpochsTrained, 0, "epochs_trained must be a positive integer"),
		check.NotEmpty(r.Contributor, "contributor is required"),
		check.NotEmpty(r.TensorboardLogs, "tensorboard_logs is required"),
	}
	if r.TensorboardLogs != "" {
		if _, err := url.ParseRequestURI(r.TensorboardLogs); err != nil {
			errs = append(errs, errors.Wrap(err, "tensorboard_logs must be a URL"))
		}
	}
	accuracy, err := r.Accuracy()
	if err != nil {
		errs = append(errs, err)
	} else {
		errs = append(errs,
			check.GreaterThanOrEqualTo(accuracy, 0, "validation_accuracy out of range"),
			check.LessThanOrEqualTo(accuracy, 1, "validation_accuracy out of range"),
		)
	}
	return errs
}

// ModelHistory maps version labels ("v0", "v1", ...) to the run that produced
// that version.
type ModelHistory map[string]TrainingRun

// VersionLabel renders a version index as its label.
func VersionLabel(index int) string {
	return fmt.Sprintf("v%d", index)
}

// ParseVersionLabel parses a label of the form "v<n>" into its index. The
// suffix must be all digits with no leading zeros, so every index has exactly
// one label.
func ParseVersionLabel(label string) (int, error) {
	digits := strings.TrimPrefix(label, "v")
	if digits == label || digits == "" || (len(digits) > 1 && digits[0] == '0') {
		return 0, errors.Errorf("malformed version label %q", label)
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, errors.Errorf("malformed version label %q", label)
		}
	}
	index, err := strconv.Atoi(digits)
	if err != nil {
		return 0, errors.Errorf("malformed version label %q", label)
	}
	return index, nil
}

// Labels returns the version labels of the history in version order. Labels
// that do not parse sort after all valid ones so that validation output is
// deterministic.
func (h ModelHistory) Labels() []string {
	labels := make([]string, 0, len(h))
	for label := range h {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		vi, erri := ParseVersionLabel(labels[i])
		vj, errj := ParseVersionLabel(labels[j])
		switch {
		case erri == nil && errj == nil:
			return vi < vj
		case erri == nil:
			return true
		case errj == nil:
			return false
		default:
			return labels[i] < labels[j]
		}
	})
	return labels
}

// NextLabel returns the label the next appended run will receive.
func (h ModelHistory) NextLabel() string {
	return VersionLabel(len(h))
}

// Validate implements the check.Validatable interface. Version labels must be
// dense from v0 upward; the run records themselves are validated separately
// by the document walk.
func (h ModelHistory) Validate() []error {
	var errs []error
	for position, label := range h.Labels() {
		index, err := ParseVersionLabel(label)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if index != position {
			errs = append(errs, errors.Errorf(
				"version labels must be dense from v0: found %q at position %d", label, position))
		}
	}
	return errs
}

// HistoryDocument is the whole training-history ledger: per-model version
// histories plus the table of script authorship.
type HistoryDocument struct {
	Models        map[string]ModelHistory `json:"models"`
	ScriptAuthors map[string][]string     `json:"script_authors"`
}

// ModelNames returns the names of all recorded models, sorted.
func (d *HistoryDocument) ModelNames() []string {
	names := make([]string, 0, len(d.Models))
	for name := range d.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScriptNames returns the names of all recorded scripts, sorted.
func (d *HistoryDocument) ScriptNames() []string {
	names := make([]string, 0, len(d.ScriptAuthors))
	for name := range d.ScriptAuthors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate implements the check.Validatable interface. Cross-table rules live
// here: every script a run references must have an authorship entry.
func (d HistoryDocument) Validate() []error {
	var errs []error
	for _, name := range d.ModelNames() {
		for label, run := range d.Models[name] {
			if _, ok := d.ScriptAuthors[run.Script.Name]; !ok && run.Script.Name != "" {
				errs = append(errs, errors.Errorf(
					"%s/%s references script %q with no script_authors entry",
					name, label, run.Script.Name))
			}
		}
	}
	for script, authors := range d.ScriptAuthors {
		if len(authors) == 0 {
			errs = append(errs, errors.Errorf("script %q has no authors", script))
		}
	}
	return errs
}
