package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/zest"
)

const version = "0.1.0"

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *zest.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "zest",
	Short: "zest - inspect and process attach directives in rendered pages",
	Long: `zest works on HTML pages rendered by a zest runtime.

Pages carry attach directives: small script elements that tell a client
runtime which controller to attach to which element, and with what options.
The commands here list those directives, check them against the page, and
strip them for static export.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = zest.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = cfg.Logger()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "zest version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "zest.yaml", "Config file (key, id prefix, logging)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	stripCmd.Flags().StringVarP(&stripOutput, "output", "o", "", "Write to file instead of stdout")

	rootCmd.AddCommand(directivesCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(stripCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
