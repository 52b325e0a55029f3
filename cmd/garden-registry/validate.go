package main

import (
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/modelgarden/registry/internal/history"
	"github.com/modelgarden/registry/pkg/buildspec"
	"github.com/modelgarden/registry/pkg/check"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate history-file [build-spec-file]",
		Short: "validate a training history ledger and optionally a build spec",
		Long: "Check that a training history ledger upholds the ledger invariants " +
			"(dense version labels, complete records, accuracies in [0, 1], script " +
			"authorship for every referenced script) and that a build spec, if given, " +
			"is well formed. Exits nonzero if any check fails.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result *multierror.Error

			if _, err := os.Stat(args[0]); err != nil {
				return errors.Wrap(err, "error finding training history")
			}
			doc, err := history.NewFileStore(args[0]).Load()
			if err != nil {
				result = multierror.Append(result, err)
			} else if err := check.Validate(doc); err != nil {
				result = multierror.Append(result, err)
			} else {
				log.Infof("%s: %d models, %d scripts, all checks passed",
					args[0], len(doc.Models), len(doc.ScriptAuthors))
			}

			if len(args) > 1 {
				spec, err := buildspec.Load(args[1])
				if err != nil {
					result = multierror.Append(result, err)
				} else if err := check.Validate(spec); err != nil {
					result = multierror.Append(result, err)
				} else {
					log.Infof("%s: %d targets, all checks passed", args[1], len(spec.Targets))
				}
			}

			return result.ErrorOrNil()
		},
	}
}
