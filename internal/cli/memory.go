package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"semantic-memory/internal/convlog"
	"semantic-memory/internal/fsutil"
	"semantic-memory/internal/rag"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Run one archival cycle now",
	Long: `Summarize every past day with enough entries, store the summaries and prune the
archived days from the conversation log. Days that fail stay in the log for the next cycle.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := app.Service.RunArchivalNow(cmd.Context())
		if report.ID == "" {
			return err
		}
		if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
			return perr
		}
		return err
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Rank summaries and knowledge against text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")
		var minScore *float64
		if cmd.Flags().Changed("min-score") {
			v, _ := cmd.Flags().GetFloat64("min-score")
			minScore = &v
		}

		app, err := openApp(cmd, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer app.Close()

		text := strings.Join(args, " ")
		results, err := app.Service.QueryLongTerm(cmd.Context(), text, k, minScore)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintf(out, "No memory found for %q.\n", text)
			return nil
		}
		fmt.Fprintf(out, "%d result(s) for %q:\n\n", len(results), text)
		for i, res := range results {
			md := res.Record.Metadata
			origin := md.ConversationDate
			if origin == "" {
				origin = md.SourceID
				if md.ContextPath != "" {
					origin += " > " + md.ContextPath
				}
			}
			fmt.Fprintf(out, "%d. [%s %s] score=%.3f similarity=%.3f\n   %s\n",
				i+1, md.Provenance, origin, res.Score, res.Similarity, oneLine(res.Record.Text, 160))
		}
		return nil
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <text>",
	Short: "Render the prompt context retrieved for text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")
		force, _ := cmd.Flags().GetBool("force-long-term")

		app, err := openApp(cmd, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer app.Close()

		opts := rag.AllTiers()
		opts.K = k
		opts.ForceLongTerm = force
		rendered, err := app.Service.BuildContext(cmd.Context(), strings.Join(args, " "), opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Print today's conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer app.Close()

		entries := app.Service.QueryShortTermOnly(cmd.Context())
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No conversation today.")
			return nil
		}
		for _, e := range entries {
			name := app.Config.UserName
			if e.Role == convlog.Assistant {
				name = app.Config.BotName
			}
			fmt.Fprintf(out, "[%s] %s: %s\n", e.Timestamp.Format("15:04"), name, e.Content)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print counts per memory partition",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer app.Close()

		stats, err := app.Service.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the conversation log and all summaries",
	Long:  `Delete the conversation log and all daily summaries. The knowledge corpus is kept.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to clear personal memory without --yes")
		}

		app, err := openApp(cmd, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Service.ClearPersonalMemory(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Personal memory cleared. %d knowledge record(s) kept.\n", app.Store.KnowledgeCount())
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the conversation log and summaries as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		app, err := openApp(cmd, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer app.Close()

		snap, err := app.Service.ExportSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		if output == "" || output == "-" {
			return printJSON(cmd.OutOrStdout(), snap)
		}
		if err := fsutil.WriteJSONAtomic(output, snap); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries and %d summaries to %s.\n",
			len(snap.ChatEntries), len(snap.DailySummaryEmbeddings), output)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the conversation log and summaries with an export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}

		app, err := openApp(cmd, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.Service.ImportSnapshot(cmd.Context(), data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries and %d summaries.\n", res.Entries, res.Summaries)
		return nil
	},
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}

func init() {
	queryCmd.Flags().IntP("k", "k", 0, "Number of results (0 uses the configured default)")
	queryCmd.Flags().Float64("min-score", 0, "Score threshold (unset uses MEMORY_MIN_SCORE)")
	contextCmd.Flags().IntP("k", "k", 0, "Number of long-term results (0 uses the configured default)")
	contextCmd.Flags().Bool("force-long-term", false, "Retrieve long-term memory even when the query does not ask for it")
	clearCmd.Flags().Bool("yes", false, "Confirm deletion")
	exportCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	rootCmd.AddCommand(archiveCmd, queryCmd, contextCmd, todayCmd, statsCmd, clearCmd, exportCmd, importCmd)
}
