// =============================================================================
// MO Tree to CSV Converter - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs a conversion.
//
// COMMAND USAGE:
//   motree process -i <file|dir> [-o <dir>] [flags]
//
// FLAGS:
//   -i, --input              : Dump file or directory of dump files
//   -o, --output             : Output directory for the per-type tables
//   -c, --parameter-file     : Parameter listing; skips schema discovery
//   -p, --extract-parameters : Only discover the schema and print the listing
//       --format             : Comma-separated output formats (csv,xlsx,parquet,sqlite)
//       --listing-out        : Where -p writes the listing (.xlsx for a workbook)
//       --summary            : Write a summary report to the output directory
//
// PROCESSING PIPELINE:
//   1. Load configuration (.env, config file, MOTREE_* variables)
//   2. Apply command-line flags on top
//   3. Validate the arguments
//   4. Run the converter
//   5. Print the summary table and optionally write the summary report
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/motree-to-csv/internal/config"
	"github.com/ginjaninja78/motree-to-csv/internal/converter"
	"github.com/ginjaninja78/motree-to-csv/internal/validation"
	"github.com/ginjaninja78/motree-to-csv/pkg/utils"
	"github.com/lithammer/dedent"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	inputPath         string
	outputDir         string
	parameterFile     string
	extractParameters bool
	formatList        string
	listingOut        string
	writeSummary      bool
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Convert MO tree XML dumps into one table per object type",
	Long: dedent.Dedent(`
		The process command walks every dump file twice. The first pass collects
		the attribute names of every object type, the second writes one row per
		object instance to the table of its type.

		Input can be a single dump file or a directory. In a directory, files that
		are not well-formed XML are reported and skipped; the other files are
		still converted. A single malformed file fails the run.

		With -c, the listed types and parameters are used as the schema and the
		discovery pass is skipped. With -p, only the discovery pass runs and the
		resulting listing is printed in the same TYPE:ATTR1,ATTR2 format.`),

	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runProcess(cmd)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	flags := processCmd.Flags()
	flags.StringVarP(&inputPath, "input", "i", "", "Dump file or directory of dump files")
	flags.StringVarP(&outputDir, "output", "o", "", "Output directory for the per-type tables")
	flags.StringVarP(&parameterFile, "parameter-file", "c", "", "Parameter listing (TYPE:ATTR1,ATTR2,... per line, or .xlsx)")
	flags.BoolVarP(&extractParameters, "extract-parameters", "p", false, "Only discover the parameters and print the listing")
	flags.StringVar(&formatList, "format", "", "Comma-separated output formats: csv, xlsx, parquet, sqlite")
	flags.StringVar(&listingOut, "listing-out", "", "Write the -p listing to this file instead of standard output")
	flags.BoolVar(&writeSummary, "summary", false, "Write a summary report to the output directory")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess loads the configuration, validates it and runs the converter.
func runProcess(cmd *cobra.Command) error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	mainConfig, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}

	// =========================================================================
	// STEP 2: APPLY FLAGS
	// =========================================================================

	opts := buildOptions(cmd, mainConfig)

	logger, closeLog, err := newLogger(cmd, mainConfig)
	if err != nil {
		return err
	}
	defer closeLog()

	// =========================================================================
	// STEP 3: VALIDATE ARGUMENTS
	// =========================================================================

	validationResult := validation.ValidateOptions(&opts)
	for _, w := range validationResult.Warnings() {
		logger.Warn("%s", w.Error())
	}
	if err := validationResult.Err(); err != nil {
		return fmt.Errorf("invalid arguments:\n%w", err)
	}

	// =========================================================================
	// STEP 4: RUN
	// =========================================================================

	conv := converter.New(opts)
	conv.SetLogger(logger)
	conv.SetListingWriter(cmd.OutOrStdout())
	result := conv.Run()

	// =========================================================================
	// STEP 5: REPORT
	// =========================================================================

	// The listing owns standard output when it is printed there.
	report := cmd.OutOrStdout()
	if opts.ParametersOnly && opts.ListingOutput == "" {
		report = cmd.ErrOrStderr()
	}
	printSummary(report, result, time.Since(startTime))

	summaryEnabled := mainConfig.WriteSummary
	if cmd.Flags().Changed("summary") {
		summaryEnabled = writeSummary
	}
	if summaryEnabled && !opts.ParametersOnly {
		path, err := utils.WriteSummaryLog(buildSummary(opts, result, startTime), opts.OutputDir)
		if err != nil {
			logger.Warn("Failed to write summary report: %v", err)
		} else {
			logger.Info("Summary report written to %s", path)
		}
	}

	if !result.Success {
		return fmt.Errorf("conversion failed: %w", result.Error)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// buildOptions merges the configuration with the command-line flags. A flag
// only overrides the configuration when it was given explicitly.
func buildOptions(cmd *cobra.Command, mainConfig *config.MainConfig) converter.Options {
	opts := converter.Options{
		Input:         mainConfig.Input,
		OutputDir:     mainConfig.OutputDir,
		ParameterFile: mainConfig.ParameterFile,
		Formats:       mainConfig.Formats,
		ListingOutput: mainConfig.ListingOutput,
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		opts.Input = inputPath
	}
	if flags.Changed("output") {
		opts.OutputDir = outputDir
	}
	if flags.Changed("parameter-file") {
		opts.ParameterFile = parameterFile
	}
	if flags.Changed("format") {
		opts.Formats = config.ParseFormats(formatList)
	}
	if flags.Changed("listing-out") {
		opts.ListingOutput = listingOut
	}
	opts.ParametersOnly = extractParameters

	return opts
}

// newLogger builds the run logger. The returned function closes the log file,
// if one was opened.
func newLogger(cmd *cobra.Command, mainConfig *config.MainConfig) (converter.Logger, func(), error) {
	level := mainConfig.LogLevel
	if verbose {
		level = "debug"
	}

	if mainConfig.LogFile == "" {
		return converter.NewTextLogger(cmd.ErrOrStderr(), level), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(mainConfig.LogFile), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(mainConfig.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return converter.NewTextLogger(f, level), func() { f.Close() }, nil
}

// printSummary renders the per-type table followed by the run totals.
func printSummary(w io.Writer, result converter.Result, elapsed time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Processing Complete ===")

	if len(result.Types) > 0 {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Type", "Columns", "Rows"})
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, t := range result.Types {
			table.Append([]string{t.Type, strconv.Itoa(t.Columns), strconv.Itoa(t.Rows)})
		}
		table.SetFooter([]string{"Total", strconv.Itoa(len(result.Types)), strconv.Itoa(result.Stats.RowsWritten)})
		table.Render()
	}

	fmt.Fprintf(w, "Mode:            %s\n", result.Mode)
	fmt.Fprintf(w, "Files:           %d\n", len(result.Files))
	fmt.Fprintf(w, "Parsed:          %d\n", result.Stats.FilesParsed)
	fmt.Fprintf(w, "Skipped:         %d\n", len(result.Skipped))
	for _, s := range result.Skipped {
		fmt.Fprintf(w, "  ✗ %s (%s): %v\n", filepath.Base(s.Path), s.State, s.Err)
	}
	fmt.Fprintf(w, "Time elapsed:    %s\n", elapsed.Round(time.Millisecond))
	if !result.Success {
		fmt.Fprintf(w, "Status:          FAILED (%s)\n", strings.TrimSpace(fmt.Sprint(result.Error)))
	}
}

// buildSummary converts a converter result into a summary report.
func buildSummary(opts converter.Options, result converter.Result, startTime time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		RunID:       utils.NewRunID(),
		StartTime:   startTime,
		EndTime:     time.Now(),
		Input:       opts.Input,
		OutputDir:   opts.OutputDir,
		Mode:        result.Mode,
		Formats:     opts.Formats,
		TotalFiles:  len(result.Files),
		ParsedFiles: result.Stats.FilesParsed,
		TotalRows:   result.Stats.RowsWritten,
	}
	for _, s := range result.Skipped {
		summary.SkippedFiles = append(summary.SkippedFiles, utils.FailedFileInfo{
			InputFile:    s.Path,
			Pass:         s.State.String(),
			ErrorMessage: s.Err.Error(),
		})
	}
	for _, t := range result.Types {
		summary.Types = append(summary.Types, utils.TypeInfo{Type: t.Type, Columns: t.Columns, Rows: t.Rows})
	}
	return summary
}
