// internal/cli/list_models.go
package parachat

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mwiater/parachat/internal/appconfig"
	"github.com/mwiater/parachat/internal/providerfactory"
	"github.com/mwiater/parachat/internal/report"
)

// listModelsCmd implements 'list models', which queries every configured host
// for its available and loaded models.
var listModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models on every configured host",
	Long:  `The 'models' subcommand lists the models available on each configured host, marks loaded and recommended models, and prints the recommended model list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListModels(cmd)
	},
}

func init() {
	listCmd.AddCommand(listModelsCmd)
}

type hostModels struct {
	available []string
	loaded    []string
	err       error
}

func runListModels(cmd *cobra.Command) error {
	cfg := getConfig()
	out := cmd.OutOrStdout()
	if err := providerfactory.ValidateHosts(cfg); err != nil {
		return err
	}

	results := make([]hostModels, len(cfg.Hosts))
	var wg sync.WaitGroup
	for i, host := range cfg.Hosts {
		wg.Add(1)
		go func(i int, host appconfig.Host) {
			defer wg.Done()
			results[i] = fetchHostModels(cmd, cfg, host)
		}(i, host)
	}
	wg.Wait()

	recommended := cfg.RecommendedModelList()
	for i, host := range cfg.Hosts {
		r := results[i]
		if r.err != nil {
			report.Status(out, false, "%s: %v", host.Name, r.err)
			continue
		}
		report.HostModels(out, host.Name, r.available, r.loaded, recommended)
		fmt.Fprintln(out)
	}
	report.Recommended(out, recommended)
	return nil
}

func fetchHostModels(cmd *cobra.Command, cfg *appconfig.Config, host appconfig.Host) hostModels {
	provider, err := providerfactory.NewChatProvider(cfg, host)
	if err != nil {
		return hostModels{err: err}
	}
	defer provider.Close()

	available, err := provider.AvailableModels(cmd.Context(), host)
	if err != nil {
		return hostModels{err: fmt.Errorf("could not list models: %w", err)}
	}
	loaded, err := provider.LoadedModels(cmd.Context(), host)
	if err != nil {
		loaded = nil
	}
	return hostModels{available: available, loaded: loaded}
}
