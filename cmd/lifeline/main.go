// Command lifeline is the command-line client for the lifeline journal.
//
// While logged out every command works on a local cache file in the data
// directory. After `lifeline login` the same commands go to the server the
// session was opened against, until `lifeline logout`.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the global flags and output streams to every subcommand.
type app struct {
	serverURL string
	dataDir   string
	output    string

	stdout io.Writer
	logger *slog.Logger
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		stdout: stdout,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}

	cmd := &cobra.Command{
		Use:           "lifeline",
		Short:         "Record life events and see how they score over time",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.output {
			case outputTable, outputJSON, outputYAML:
			default:
				return fmt.Errorf("--output must be %s, %s or %s", outputTable, outputJSON, outputYAML)
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&a.serverURL, "server", os.Getenv("LIFELINE_SERVER"),
		"Server base URL (default from the saved session, then "+defaultServerURL+")")
	cmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", defaultDataDir(),
		"Directory holding the local cache and the saved session")
	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", outputTable, "Output format: table, json or yaml")

	cmd.AddCommand(
		newRegisterCommand(a),
		newVerifyCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newCategoriesCommand(a),
		newEventsCommand(a),
		newStatsCommand(a),
		newVisitorsCommand(a),
	)
	return cmd
}

func defaultDataDir() string {
	if dir := os.Getenv("LIFELINE_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lifeline"
	}
	return filepath.Join(home, ".lifeline")
}
