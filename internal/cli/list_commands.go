// internal/cli/list_commands.go
package parachat

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// commandsCmd implements 'list commands', which prints the command tree in two columns.
var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List all commands and subcommands in two columns",
	Run: func(cmd *cobra.Command, args []string) {
		runListCommands(cmd.OutOrStdout(), rootCmd)
	},
}

func init() {
	listCmd.AddCommand(commandsCmd)
}

// commandInfo holds the path and description of a command for display.
type commandInfo struct {
	path        string
	description string
}

func runListCommands(out io.Writer, root *cobra.Command) {
	rows := collectCommandData(root, "", "")

	width := 0
	for _, r := range rows {
		if len(r.path) > width {
			width = len(r.path)
		}
	}

	fmt.Fprintln(out, "Commands and Subcommands:")
	for _, r := range rows {
		if strings.Contains(r.path, "completion") || strings.Contains(r.path, "help") {
			continue
		}
		fmt.Fprintf(out, "  %-*s  %s\n", width, r.path, r.description)
	}
}

// collectCommandData walks the command tree depth-first, indenting each level.
func collectCommandData(cmd *cobra.Command, parent, indent string) []commandInfo {
	path := cmd.Name()
	if parent != "" {
		path = parent + " " + cmd.Name()
	}

	rows := []commandInfo{{path: indent + path, description: cmd.Short}}
	for _, sub := range cmd.Commands() {
		rows = append(rows, collectCommandData(sub, path, indent+"  ")...)
	}
	return rows
}
