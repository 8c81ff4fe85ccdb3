// =============================================================================
// MDF-e Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand is
// attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (converter)
//   ├── convertCmd       (converter convert)
//   ├── validateCmd      (converter validate)
//   ├── statusCmd        (converter status-request)
//   └── versionCmd       (converter version)
//
// The root command owns the global flags (--config, --verbose) and builds
// the shared logger and configuration for the subcommands.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/mdfe-converter/internal/config"
	"github.com/ginjaninja78/mdfe-converter/internal/converter"
	"github.com/ginjaninja78/mdfe-converter/internal/layout"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging, whatever log_level says.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "converter",
	Short: "MDF-e Converter - Turn flat-text transport manifests into MDF-e XML",
	Long: `MDF-e Converter reads the pipe-delimited text files exported by ERPs and
turns every manifest they carry into an MDF-e 3.00 XML document, ready to be
signed and sent to the tax authority.

Key Features:
  - Batches of several manifests per file (MANIFESTO|N| header)
  - Layouts as data: embedded 3.00 layout, YAML or XLSX overrides
  - Access key reconciliation (the Id is never rewritten)
  - Concurrent conversion with results kept in batch order
  - Archival of processed files and per-run error logs

Example Usage:
  converter convert                        # Convert every file in the input directory
  converter convert --file lote.txt        # Convert a single file
  converter validate                       # Check configuration and layouts
  converter status-request --uf MG         # Print a service status request`,

	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadConfig loads the main configuration and builds the logger it asks for.
func loadConfig() (*config.MainConfig, *converter.ZapLogger, error) {
	mainConfig, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load main config: %w", err)
	}

	level := mainConfig.LogLevel
	if verbose {
		level = "debug"
	}
	logger, err := converter.NewConsoleLogger(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log_level %q: %w", level, err)
	}
	return mainConfig, logger, nil
}

// loadLayouts returns the embedded layout plus the configured layout file.
func loadLayouts(mainConfig *config.MainConfig) (*layout.Registry, error) {
	registry, err := layout.NewRegistry()
	if err != nil {
		return nil, err
	}
	if mainConfig.LayoutFile != "" {
		if err := registry.LoadFile(mainConfig.LayoutFile); err != nil {
			return nil, fmt.Errorf("failed to load layout file: %w", err)
		}
	}
	return registry, nil
}
