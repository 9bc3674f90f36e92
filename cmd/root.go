// =============================================================================
// MO Tree to CSV Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (motree)
//   ├── processCmd (motree process)
//   └── versionCmd (motree version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading .env files before any command reads the environment
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/ginjaninja78/motree-to-csv/internal/config"
	"github.com/lithammer/dedent"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "motree",
	Short:   "MO Tree to CSV Converter - Flatten Huawei MO tree XML dumps into per-type tables",
	Version: Version,

	// Execute prints the error itself.
	SilenceErrors: true,
	Long: dedent.Dedent(`
		MO Tree to CSV Converter reads XML dumps of a managed-object tree and writes
		one table per object type. Every object instance becomes one row, every
		attribute name seen for that type becomes one column.

		A run makes two passes over the input:
		  1. Schema discovery collects the attribute names of every object type
		     (skipped when a parameter listing is given with -c)
		  2. Row extraction writes one row per object, prefixed with the dump
		     file name and the node name

		Example Usage:
		  motree process -i dump.xml -o ./out             # Convert one dump
		  motree process -i ./dumps -o ./out              # Convert every dump in a directory
		  motree process -i ./dumps -p > params.txt       # Only list the parameters
		  motree process -i ./dumps -o ./out -c params.txt
		  motree process -i dump.xml -o ./out --format csv,xlsx`),

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnv()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("MO Tree to CSV Converter %s\n", Version))

	// --config flag: optional when left at its default.
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.DefaultConfigPath,
		"Path to the main configuration file",
	)

	// --verbose flag: enables debug logging.
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}
