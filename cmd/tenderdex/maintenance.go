package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/usecase/remediation"
)

var (
	fixDryRun bool
	fixAudit  string
)

var fixTypesCmd = &cobra.Command{
	Use:   "fix-types",
	Short: "Recompute procurement types of indexed tenders",
	Long: `Scan every indexed tender, apply taxonomy type aliases and resolve
Unknown/Other types from title keywords, then upsert the changed documents.
Vectors are kept. Every change is appended to the audit log when --audit is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			start := time.Now()
			fixer := remediation.NewProcurementTypeFixer(a.repo, a.taxonomy, a.logger)
			report, err := fixer.Run(cmd.Context(), remediation.Options{
				BatchSize: a.cfg.Index.RemediationBatchSize,
				DryRun:    fixDryRun,
				AuditPath: fixAudit,
			})
			if err != nil {
				return err
			}
			a.logger.Info("Procurement type remediation finished",
				zap.Int("scanned", report.Scanned),
				zap.Int("changed", report.Changed),
				zap.Int("applied", report.Applied),
				zap.Bool("dry_run", report.DryRun),
				zap.Duration("elapsed", time.Since(start)),
			)
			return printJSON(cmd, report)
		})
	},
}

var checkIDsCmd = &cobra.Command{
	Use:   "check-ids ID...",
	Short: "Report which tender ids are missing from the index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			docs, err := a.repo.Get(cmd.Context(), args)
			if err != nil {
				return err
			}
			found := make(map[string]struct{}, len(docs))
			for _, d := range docs {
				found[d.ID] = struct{}{}
			}

			var missing []string
			for _, id := range args {
				if _, ok := found[id]; !ok && !slices.Contains(missing, id) {
					missing = append(missing, id)
				}
			}

			cmd.Printf("checked %d, found %d, missing %d\n", len(args), len(found), len(missing))
			for _, id := range missing {
				cmd.Println(id)
			}
			if len(missing) > 0 {
				return fmt.Errorf("%d ids missing from index", len(missing))
			}
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of indexed tenders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			n, err := a.repo.Count(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("index %s: %d documents (model %s)\n",
				a.cfg.Index.Name, n, a.cfg.Embedding.Vectorizer.Model)
			return nil
		})
	},
}

func init() {
	fixTypesCmd.Flags().BoolVar(&fixDryRun, "dry-run", false, "report changes without writing")
	fixTypesCmd.Flags().StringVar(&fixAudit, "audit", "", "append changes to this JSONL file")

	rootCmd.AddCommand(fixTypesCmd, checkIDsCmd, statsCmd)
}
