package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"semantic-memory/internal/classifier"
	"semantic-memory/internal/config"
	"semantic-memory/internal/indexer"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Chunk, embed and store knowledge documents",
	Long: `Ingest a markdown file or every markdown file under a directory into the knowledge
corpus. With no path the configured knowledge source directory is re-ingested.
Unchanged sources are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer app.Close()

		var report *indexer.Report
		switch {
		case len(args) == 0:
			report, err = app.Service.ReloadKnowledge(cmd.Context())
		default:
			info, statErr := os.Stat(args[0])
			if statErr != nil {
				return fmt.Errorf("reading %s: %w", args[0], statErr)
			}
			if info.IsDir() {
				report, err = app.Ingest.IngestDir(cmd.Context(), args[0])
			} else {
				report, err = app.Ingest.IngestFile(cmd.Context(), args[0])
			}
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, src := range report.Sources {
			switch {
			case src.Error != "":
				fmt.Fprintf(out, "  FAIL  %s: %s\n", src.SourceID, src.Error)
			case src.Skipped:
				fmt.Fprintf(out, "  same  %s\n", src.SourceID)
			default:
				fmt.Fprintf(out, "  ok    %s (%d chunks)\n", src.SourceID, src.Chunks)
			}
		}
		fmt.Fprintf(out, "Processed %d, unchanged %d, failed %d. Knowledge records: %d.\n",
			report.SourcesProcessed, report.SourcesUnchanged, report.SourcesFailed, app.Store.KnowledgeCount())
		if report.SourcesFailed > 0 {
			return fmt.Errorf("%d source(s) failed to ingest", report.SourcesFailed)
		}
		return nil
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <source-id>",
	Short: "Remove a knowledge source and its records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer app.Close()

		if _, ok := app.Store.Sources()[args[0]]; !ok {
			return fmt.Errorf("unknown knowledge source %q", args[0])
		}
		if err := app.Store.DeleteSource(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s. Knowledge records: %d.\n", args[0], app.Store.KnowledgeCount())
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Show the query intent and whether long-term memory is needed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		tax, err := classifier.LoadTaxonomy(cfg.TaxonomyFile)
		if err != nil {
			return err
		}

		text := strings.Join(args, " ")
		intent := tax.IntentClassifier().Classify(text)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "intent:          %s\n", intent.Category)
		fmt.Fprintf(out, "confidence:      %.2f\n", intent.Confidence)
		fmt.Fprintf(out, "needs long-term: %t\n", tax.HistoryDetector().NeedsLongTerm(text))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd, forgetCmd, classifyCmd)
}
