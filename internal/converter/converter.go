// =============================================================================
// MO Tree to CSV Converter - Conversion Driver
// =============================================================================
//
// This module orchestrates a whole conversion run over one dump file or a
// directory of dumps. A run is a small state machine:
//
//   DiscoveringSchema -> ExtractingRows -> Done
//                 \            \
//                  +------------+-> Failed
//
//   1. DISCOVERING SCHEMA: every input file is walked once and the attribute
//      names of every closed object are collected into the schema registry.
//      Skipped when a parameter listing is given.
//   2. EXTRACTING ROWS: every input file is walked again and each closed
//      object becomes one row in the output table of its type.
//
// FAILURE POLICY:
//   - Directory input: a file that cannot be parsed is logged and skipped.
//     A file skipped during discovery is not read again during extraction.
//   - Single file input: a parse failure fails the run.
//   - Output errors fail the run in every mode.
//
// CONCURRENCY:
//   None. Files are processed one after the other, and the extraction pass
//   only starts once discovery has finished for every file.
//
// =============================================================================

package converter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/motree-to-csv/internal/emitter"
	"github.com/ginjaninja78/motree-to-csv/internal/motree"
	"github.com/ginjaninja78/motree-to-csv/internal/output"
	"github.com/ginjaninja78/motree-to-csv/internal/schema"
	"github.com/ginjaninja78/motree-to-csv/internal/types"
	"github.com/ginjaninja78/motree-to-csv/pkg/utils"
)

// =============================================================================
// STATE
// =============================================================================

// State is the phase a run is in.
type State int

const (
	// DiscoveringSchema collects the columns of every MO type.
	DiscoveringSchema State = iota

	// ExtractingRows writes one row per MO instance.
	ExtractingRows

	// Done means the run finished and all outputs are closed.
	Done

	// Failed means the run stopped on a fatal error.
	Failed
)

func (s State) String() string {
	switch s {
	case DiscoveringSchema:
		return "discovering schema"
	case ExtractingRows:
		return "extracting rows"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a run.
type Options struct {
	// Input is a dump file or a directory of dump files.
	Input string `validate:"required"`

	// OutputDir receives the per-type tables.
	OutputDir string `validate:"required_unless=ParametersOnly true"`

	// ParameterFile is an optional parameter listing. When set, discovery is
	// skipped and only the listed types and parameters are written.
	ParameterFile string

	// Formats lists the output formats; empty means csv.
	Formats []string `validate:"dive,oneof=csv xlsx parquet sqlite"`

	// ParametersOnly stops after discovery and writes the parameter listing
	// instead of any rows.
	ParametersOnly bool

	// ListingOutput is where ParametersOnly writes the listing. Empty means
	// the converter's listing writer (standard output by default).
	ListingOutput string
}

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of a run.
type Result struct {
	// Input is the file or directory that was processed.
	Input string

	// Success indicates whether the run reached Done.
	Success bool

	// Error contains the fatal error if the run failed.
	Error error

	// State is the state the run ended in.
	State State

	// Mode is "discovery" or "listing", depending on where the schema came from.
	Mode string

	// Files lists the input files, in processing order.
	Files []string

	// Skipped lists the files that were skipped because they could not be parsed.
	Skipped []FileFailure

	// Types describes every MO type in the schema, in first-seen order.
	Types []TypeStats

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// FileFailure records a skipped file.
type FileFailure struct {
	Path  string
	State State
	Err   error
}

// TypeStats describes the output of one MO type.
type TypeStats struct {
	Type    string
	Columns int
	Rows    int
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// FilesParsed is the number of files that made it through every pass.
	FilesParsed int

	// BytesRead is the total size of the files read during extraction.
	BytesRead int64

	// ObjectsSeen counts closed objects during discovery.
	ObjectsSeen int

	// RowsWritten counts rows over all types.
	RowsWritten int

	// DiscoveryTime and ExtractionTime are the durations of the two passes.
	DiscoveryTime  time.Duration
	ExtractionTime time.Duration

	// ProcessingTime is the time taken by the whole run.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// FactoryFunc builds the output factory for a run.
type FactoryFunc func(dir string, formats []string) (output.Factory, error)

// Converter runs the two passes over the input files.
type Converter struct {
	opts   Options
	logger Logger

	state    State
	files    []string
	skipped  map[string]bool
	single   bool
	walker   *motree.Walker
	registry *schema.Registry
	emitter  *emitter.Emitter

	newFactory FactoryFunc
	listingOut io.Writer

	result Result
}

// New creates a new Converter.
func New(opts Options) *Converter {
	return &Converter{
		opts:       opts,
		logger:     &defaultLogger{},
		walker:     motree.New(),
		skipped:    make(map[string]bool),
		newFactory: output.NewFactory,
		listingOut: os.Stdout,
	}
}

// SetLogger replaces the logger.
func (c *Converter) SetLogger(logger Logger) {
	if logger == nil {
		logger = NopLogger()
	}
	c.logger = logger
}

// SetListingWriter sets where ParametersOnly writes the listing when no
// ListingOutput path is configured.
func (c *Converter) SetListingWriter(w io.Writer) {
	c.listingOut = w
}

// SetFactoryFunc replaces the output factory constructor.
func (c *Converter) SetFactoryFunc(f FactoryFunc) {
	c.newFactory = f
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the conversion.
//
// RETURNS:
//   - A Result describing the run. Result.Error is set when the run failed.
//
// PROCESSING STEPS:
//   1. Discover the input files
//   2. Load the parameter listing, if any
//   3. Run one loop per state until Done or Failed
//   4. Close every output exactly once
func (c *Converter) Run() Result {
	startTime := time.Now()
	c.result = Result{Input: c.opts.Input}

	if err := c.run(); err != nil {
		c.fail(err)
	}

	c.collectTypeStats()
	c.result.State = c.state
	c.result.Success = c.state == Done
	c.result.Stats.ProcessingTime = time.Since(startTime)

	return c.result
}

func (c *Converter) run() error {
	// =========================================================================
	// STEP 1: DISCOVER INPUT FILES
	// =========================================================================

	fm := utils.NewFileManager(c.opts.Input, c.opts.OutputDir)
	isDir, err := fm.IsDirectoryInput()
	if err != nil {
		return err
	}
	c.single = !isDir

	files, err := fm.DiscoverInputFiles()
	if err != nil {
		return err
	}
	c.files = files
	c.result.Files = files

	c.logger.Debug("Found %d input file(s) in %s", len(files), c.opts.Input)

	// =========================================================================
	// STEP 2: CHOOSE THE SCHEMA SOURCE
	// =========================================================================

	if c.opts.ParameterFile != "" {
		c.logger.Info("Loading parameters from %s", c.opts.ParameterFile)

		reg, err := schema.LoadListing(c.opts.ParameterFile)
		if err != nil {
			return fmt.Errorf("failed to load parameter file: %w", err)
		}
		c.warnReservedListingColumns(reg)

		c.registry = reg
		c.state = ExtractingRows
	} else {
		c.registry = schema.NewRegistry()
		c.state = DiscoveringSchema
	}
	c.result.Mode = c.registry.Mode().String()

	// =========================================================================
	// STEP 3: DRIVE THE STATE MACHINE
	// =========================================================================

	for c.state != Done && c.state != Failed {
		var err error
		switch c.state {
		case DiscoveringSchema:
			err = c.runDiscovery()
		case ExtractingRows:
			err = c.runExtraction()
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// =============================================================================
// PASS 1: SCHEMA DISCOVERY
// =============================================================================

// runDiscovery walks every input file into a per-file staging registry and
// merges it into the run registry once the file has been read to the end.
func (c *Converter) runDiscovery() error {
	start := time.Now()

	for _, path := range c.files {
		c.logger.Info("Extracting parameters from %s", filepath.Base(path))

		staging := schema.NewRegistry()
		objects := 0
		observe := motree.HandlerFunc(func(_ *types.FileContext, obj *types.ManagedObject) error {
			objects++
			return staging.Observe(obj)
		})

		if err := c.walkFile(path, observe); err != nil {
			if skipErr := c.skipOrFail(path, err); skipErr != nil {
				return skipErr
			}
			continue
		}

		if err := c.registry.Merge(staging); err != nil {
			return err
		}
		c.result.Stats.ObjectsSeen += objects
		c.logger.Debug("%s: %d object(s), %d type(s)", filepath.Base(path), objects, staging.Len())
	}

	c.registry.Freeze()
	c.result.Stats.DiscoveryTime = time.Since(start)
	c.logger.Info("Discovered %d MO type(s)", c.registry.Len())

	if c.opts.ParametersOnly {
		if err := c.writeListing(); err != nil {
			return err
		}
		c.result.Stats.FilesParsed = len(c.files) - len(c.skipped)
		c.state = Done
		return nil
	}

	c.state = ExtractingRows
	return nil
}

// writeListing writes the discovered schema as a parameter listing.
func (c *Converter) writeListing() error {
	if c.opts.ListingOutput == "" {
		if err := c.registry.WriteListing(c.listingOut); err != nil {
			return fmt.Errorf("failed to write parameter listing: %w", err)
		}
		return nil
	}

	if err := c.registry.SaveListing(c.opts.ListingOutput); err != nil {
		return fmt.Errorf("failed to write parameter listing: %w", err)
	}
	c.logger.Info("Wrote parameter listing to %s", c.opts.ListingOutput)
	return nil
}

// =============================================================================
// PASS 2: ROW EXTRACTION
// =============================================================================

// runExtraction walks every input file again and writes its rows.
func (c *Converter) runExtraction() error {
	start := time.Now()

	factory, err := c.newFactory(c.opts.OutputDir, c.opts.Formats)
	if err != nil {
		return fmt.Errorf("failed to create outputs: %w", err)
	}
	c.emitter = emitter.New(c.registry, factory)

	for _, path := range c.files {
		if c.skipped[path] {
			continue
		}

		c.logger.Info("Parsing %s", filepath.Base(path))

		file := types.NewFileContext(path)
		c.emitter.Begin(file)

		if err := c.walkFileContext(path, file, c.emitter); err != nil {
			c.emitter.Discard()
			if skipErr := c.skipOrFail(path, err); skipErr != nil {
				return skipErr
			}
			continue
		}

		if err := c.emitter.Commit(); err != nil {
			return err
		}

		c.result.Stats.FilesParsed++
		if size, err := utils.GetFileSize(path); err == nil {
			c.result.Stats.BytesRead += size
		}
	}

	if err := c.emitter.Close(); err != nil {
		return err
	}

	c.result.Stats.ExtractionTime = time.Since(start)
	c.state = Done
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// walkFile walks one file with a fresh file context.
func (c *Converter) walkFile(path string, h motree.Handler) error {
	return c.walkFileContext(path, types.NewFileContext(path), h)
}

// walkFileContext opens path and walks it. Failures to open or read the file
// are reported as *motree.ParseError so they are handled like parse errors.
func (c *Converter) walkFileContext(path string, file *types.FileContext, h motree.Handler) error {
	f, err := os.Open(path)
	if err != nil {
		return &motree.ParseError{File: file.BaseName, Err: err}
	}
	defer f.Close()

	return c.walker.Walk(f, file, h)
}

// skipOrFail decides what a failed file means for the run. Parse errors in a
// directory run skip the file; anything else is returned as fatal.
func (c *Converter) skipOrFail(path string, err error) error {
	if !motree.IsParseError(err) {
		return err
	}
	if c.single {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	c.logger.Warn("Skipping file: %s (%v)", filepath.Base(path), err)
	c.skipped[path] = true
	c.result.Skipped = append(c.result.Skipped, FileFailure{Path: path, State: c.state, Err: err})
	return nil
}

// fail moves the run to Failed, closes any open outputs and records err.
func (c *Converter) fail(err error) {
	c.state = Failed
	if c.emitter != nil {
		if closeErr := c.emitter.Close(); closeErr != nil {
			c.logger.Debug("Closing outputs after failure: %v", closeErr)
		}
	}
	c.result.Error = err
	c.logger.Error("%v", err)
}

// collectTypeStats fills Result.Types from the registry and the emitter.
func (c *Converter) collectTypeStats() {
	c.result.Types = nil
	c.result.Stats.RowsWritten = 0
	if c.registry == nil {
		return
	}

	for _, t := range c.registry.Types() {
		stats := TypeStats{Type: t, Columns: len(c.registry.OutputColumns(t))}
		if c.emitter != nil {
			stats.Rows = c.emitter.Rows(t)
		}
		c.result.Types = append(c.result.Types, stats)
		c.result.Stats.RowsWritten += stats.Rows
	}
}

// warnReservedListingColumns logs listed parameters that will never be
// written because FILENAME and NODENAME already carry them.
func (c *Converter) warnReservedListingColumns(reg *schema.Registry) {
	for _, t := range reg.Types() {
		for _, col := range reg.Columns(t) {
			if schema.IsReserved(col) {
				c.logger.Warn("Parameter %s of %s is reserved and will not be written", col, t)
			}
		}
		if len(reg.Columns(t)) == 0 {
			c.logger.Warn("No parameters listed for %s; it will not be written", t)
		}
	}
}

// IsOutputError reports whether a run failed because an output could not be
// created or written.
func IsOutputError(err error) bool {
	return output.IsOutputError(err)
}

// IsParseError reports whether a run failed because an input could not be
// parsed.
func IsParseError(err error) bool {
	var pe *motree.ParseError
	return errors.As(err, &pe)
}
