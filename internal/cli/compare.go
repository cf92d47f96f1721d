// internal/cli/compare.go
package parachat

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwiater/parachat/internal/logging"
	"github.com/mwiater/parachat/internal/metrics"
	"github.com/mwiater/parachat/internal/report"
	"github.com/mwiater/parachat/internal/session"
	"github.com/mwiater/parachat/internal/util"
)

var (
	compareHost       string
	compareModel      string
	compareRuns       int
	compareHistoryOut string
)

// compareCmd implements 'compare', which runs the same prompt in both modes
// and prints aggregate statistics per mode.
var compareCmd = &cobra.Command{
	Use:   "compare [prompt]",
	Short: "Run a prompt in both modes and compare their performance",
	Long:  `The 'compare' command runs the prompt sequentially and in parallel mode --runs times each, aggregates the snapshots per mode and prints a comparison table with the parallel/sequential speedup.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompare(cmd, strings.Join(args, " "))
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareHost, "host", "", "host name from config (default: first host)")
	compareCmd.Flags().StringVarP(&compareModel, "model", "m", "", "model name (default: host's first model)")
	compareCmd.Flags().IntVarP(&compareRuns, "runs", "n", 3, "runs per mode")
	compareCmd.Flags().StringVar(&compareHistoryOut, "history-out", "", "merge results into this JSON history file")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, prompt string) error {
	cfg := getConfig()
	out := cmd.OutOrStdout()
	if compareRuns < 1 {
		return fmt.Errorf("--runs must be at least 1, got %d", compareRuns)
	}

	t, err := resolveTarget(cfg, compareHost, compareModel)
	if err != nil {
		return err
	}
	t.warmUp(cmd.Context())

	history := metrics.NewHistory()
	if compareHistoryOut != "" {
		if history, err = metrics.LoadHistory(compareHistoryOut); err != nil {
			return err
		}
	}

	s, _ := newSession(cfg, t)
	s.OnResult(func(msg session.ChatMessage) {
		history.Record(*msg.Metrics)
	})

	failures := 0
	for i := 1; i <= compareRuns; i++ {
		for _, mode := range []metrics.ExecutionMode{metrics.Sequential, metrics.Parallel} {
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			msg, err := s.Run(cmd.Context(), mode, prompt, t.model)
			detail := formatElapsed(msg)
			if err != nil {
				detail += "  " + util.TruncateRunes(util.FirstLine(msg.Error), 60)
			}
			report.Status(out, err == nil, "run %d/%d %-10s %s", i, compareRuns, mode, detail)
			if err != nil {
				failures++
				logging.LogEvent("compare run %d (%s) failed: %v", i, mode, err)
			}
		}
	}

	fmt.Fprintln(out)
	report.Comparison(out, history)

	if compareHistoryOut != "" {
		if err := history.Save(compareHistoryOut); err != nil {
			return fmt.Errorf("save history: %w", err)
		}
		fmt.Fprintf(out, "History written to %s\n", compareHistoryOut)
	}
	if failures == 2*compareRuns {
		return fmt.Errorf("all %d runs failed", failures)
	}
	return nil
}

func formatElapsed(msg session.ChatMessage) string {
	if msg.Metrics == nil {
		return ""
	}
	return fmt.Sprintf("%.1f ms", float64(msg.Metrics.TotalResponseTime().Microseconds())/1000)
}
