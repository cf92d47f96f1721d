// internal/cli/analyze.go
package parachat

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwiater/parachat/internal/report"
	"github.com/mwiater/parachat/internal/textproc"
)

// analyzeCmd implements 'analyze', which runs the parallel text pass over a
// local file or stdin without contacting any host.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Run the parallel text analysis on a file or stdin",
	Long:  `The 'analyze' command splits the input into word chunks, analyzes them concurrently and prints the merged text, the analysis summary and fan-out timing. With no file or "-", input is read from stdin.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		return runAnalyze(cmd, path)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, path string) error {
	cfg := getConfig()

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	o := textproc.NewOrchestrator(cfg.Parallelism(), cfg.ChunkDelay())
	r, err := o.Run(cmd.Context(), string(data))
	if err != nil {
		return err
	}
	report.Analysis(cmd.OutOrStdout(), r, o.ChunkDelay)
	return nil
}
