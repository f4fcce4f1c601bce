package cli

import (
	"log/slog"
	"os"

	"github.com/me/gosweep/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking GOSWEEP_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("GOSWEEP_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the gosweep CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sweepctl",
		Short: "gosweep — parameter-sweep batch scheduler",
		Long:  "sweepctl submits, monitors, and post-processes parameter sweeps on a gosweep daemon.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.New(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "gosweep daemon URL (or GOSWEEP_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSubmitCmd(),
		newStatusCmd(),
		newListCmd(),
		newResultsCmd(),
		newExportCmd(),
		newHistoryCmd(),
		newDeleteCmd(),
	)

	return root
}
