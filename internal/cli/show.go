// internal/cli/show.go
package parachat

import (
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"

	"github.com/mwiater/parachat/internal/appconfig"
)

var showConfigDump bool

// showCmd represents the 'show' command group for displaying resources.
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Group commands for displaying resources",
}

// showConfigCmd prints the effective configuration after flags override the file.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings ensuring that the JSON configs are loaded properly and overridden by flags accordingly.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		cfg := getConfig()
		appconfig.ShowConfig(out, cfg.ConfigPath, cfg)
		if showConfigDump {
			pp.ColoringEnabled = false
			_, _ = pp.Fprintln(out, cfg)
		}
	},
}

func init() {
	showConfigCmd.Flags().BoolVar(&showConfigDump, "dump", false, "also dump the full config structure")
	showCmd.AddCommand(showConfigCmd)
	rootCmd.AddCommand(showCmd)
}
