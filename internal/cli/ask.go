// internal/cli/ask.go
package parachat

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwiater/parachat/internal/report"
	"github.com/mwiater/parachat/internal/session"
)

var (
	askHost  string
	askModel string
	askMode  string
	askQuiet bool
)

// askCmd implements 'ask', which sends one prompt and prints the response
// followed by its performance snapshot.
var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send one prompt and report its performance",
	Long:  `The 'ask' command sends a prompt to the selected host and model in sequential or parallel mode, then prints the response and the measured performance metrics.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().StringVar(&askHost, "host", "", "host name from config (default: first host)")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "model name (default: host's first model)")
	askCmd.Flags().StringVar(&askMode, "mode", "", "sequential or parallel (default: config defaultMode)")
	askCmd.Flags().BoolVarP(&askQuiet, "quiet", "q", false, "print only the response")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, prompt string) error {
	cfg := getConfig()
	out := cmd.OutOrStdout()

	mode, err := resolveMode(cfg, askMode)
	if err != nil {
		return err
	}
	t, err := resolveTarget(cfg, askHost, askModel)
	if err != nil {
		return err
	}
	t.warmUp(cmd.Context())

	s, exporter := newSession(cfg, t)
	msg, runErr := s.Run(cmd.Context(), mode, prompt, t.model)

	if runErr == nil {
		fmt.Fprintln(out, msg.Response)
	}
	if !askQuiet {
		fmt.Fprintln(out)
		report.Metrics(out, *msg.Metrics)
		report.Status(out, runErr == nil, "%s on %s (%s)", t.model, t.host.Name, mode)
	}
	if exporter != nil && exporter.Err() != nil {
		report.Status(out, false, "export to %s: %v", cfg.ExportPath, exporter.Err())
	}

	if ie, ok := session.AsInferenceError(runErr); ok {
		return fmt.Errorf("%s failure: %s", ie.Kind, ie.Message)
	}
	return runErr
}
