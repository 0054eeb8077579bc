package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aaronromeo/sortpat/internal/announcer"
	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scan, classify and label cycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, err := cmd.Flags().GetBool("dry-run")
			if err != nil {
				return err
			}
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}

			a, err := newApp(cmd, dryRun)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			summary, runErr := a.coordinator.Run(commandContext(cmd))
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
			} else {
				writeSummary(cmd.OutOrStdout(), summary)
			}
			return runErr
		},
	}
	cmd.Flags().Bool("dry-run", false, "Classify and report without writing labels or expunging")
	cmd.Flags().Bool("json", false, "Print the run summary as JSON")
	return cmd
}

func writeJSON(w io.Writer, summary model.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func writeSummary(w io.Writer, summary model.RunSummary) {
	fmt.Fprintln(w, announcer.Message(summary))
	for _, a := range summary.Audit {
		label := a.Label
		if label == "" {
			label = "-"
		}
		line := fmt.Sprintf("  uid=%d label=%s outcome=%s", a.UID, label, a.Outcome)
		if a.Archived {
			line += " archived"
		}
		if a.Reason != "" {
			line += fmt.Sprintf(" reason=%q", a.Reason)
		}
		fmt.Fprintln(w, line)
	}
	if summary.CommitError != "" {
		fmt.Fprintf(w, "expunge failed: %s\n", summary.CommitError)
	}
	for _, insight := range summary.Insights {
		fmt.Fprintf(w, "  nlp uid=%d sentiment=%s summary=%q\n", insight.UID, insight.Sentiment, insight.Summary)
	}
}
