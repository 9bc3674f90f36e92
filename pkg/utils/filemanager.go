// =============================================================================
// MO Tree to CSV Converter - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the converter, including:
//   - Input discovery (a single dump or every dump in a directory)
//   - Output directory checks
//   - Processing summary reports
//
// INPUT DISCOVERY:
//   - A file input is processed on its own.
//   - A directory input yields every regular, readable file directly inside
//     it, sorted by name. Subdirectories are not entered.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the converter.
type FileManager struct {
	// Input is the dump file or the directory of dumps.
	Input string

	// OutputDir is the directory where output files are placed.
	OutputDir string
}

// NewFileManager creates a new FileManager.
func NewFileManager(input, outputDir string) *FileManager {
	return &FileManager{
		Input:     input,
		OutputDir: outputDir,
	}
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// IsDirectoryInput reports whether the input is a directory.
func (fm *FileManager) IsDirectoryInput() (bool, error) {
	info, err := os.Stat(fm.Input)
	if err != nil {
		return false, fmt.Errorf("failed to stat input: %w", err)
	}
	return info.IsDir(), nil
}

// DiscoverInputFiles lists the dumps to process.
//
// RETURNS:
//   - The input itself when it is a file.
//   - The regular, readable files directly inside it when it is a directory,
//     sorted by name. Entries that cannot be opened are left out.
//   - An error if the input cannot be read.
func (fm *FileManager) DiscoverInputFiles() ([]string, error) {
	isDir, err := fm.IsDirectoryInput()
	if err != nil {
		return nil, err
	}
	if !isDir {
		return []string{fm.Input}, nil
	}

	// os.ReadDir returns entries sorted by file name.
	entries, err := os.ReadDir(fm.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var result []string
	for _, entry := range entries {
		path := filepath.Join(fm.Input, entry.Name())

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if !IsReadable(path) {
			continue
		}
		result = append(result, path)
	}

	return result, nil
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureOutputDir creates the output directory if it doesn't exist and
// checks that files can be created in it.
func (fm *FileManager) EnsureOutputDir() error {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}
	return CheckWritable(fm.OutputDir)
}

// CheckWritable verifies that a file can be created in dir.
func CheckWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".motree-write-check-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	RunID        string
	StartTime    time.Time
	EndTime      time.Time
	Input        string
	OutputDir    string
	Mode         string
	Formats      []string
	TotalFiles   int
	ParsedFiles  int
	SkippedFiles []FailedFileInfo
	Types        []TypeInfo
	TotalRows    int
}

// TypeInfo describes the output of one MO type.
type TypeInfo struct {
	Type    string
	Columns int
	Rows    int
}

// FailedFileInfo contains information about a skipped file.
type FailedFileInfo struct {
	InputFile    string
	Pass         string
	ErrorMessage string
}

// NewRunID returns a unique identifier for a processing run.
func NewRunID() string {
	return uuid.New().String()
}

// WriteSummaryLog writes a processing summary to a log file.
//
// PARAMETERS:
//   - summary: The processing summary.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	if summary.RunID == "" {
		summary.RunID = NewRunID()
	}

	shortID := summary.RunID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	timestamp := summary.StartTime.Format("20060102_150405")
	summaryFileName := fmt.Sprintf("motree_summary_%s_%s.txt", timestamp, shortID)
	summaryPath := filepath.Join(outputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "MO Tree to CSV Converter - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Input:          %s\n"+
		"  Output:         %s\n"+
		"  Schema:         %s\n"+
		"  Formats:        %v\n\n"+
		"Statistics:\n"+
		"  Total Files:    %d\n"+
		"  Parsed:         %d\n"+
		"  Skipped:        %d\n"+
		"  MO Types:       %d\n"+
		"  Total Rows:     %d\n\n",
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.Input,
		summary.OutputDir,
		summary.Mode,
		summary.Formats,
		summary.TotalFiles,
		summary.ParsedFiles,
		len(summary.SkippedFiles),
		len(summary.Types),
		summary.TotalRows)

	if len(summary.Types) > 0 {
		writer.WriteString("Output Types:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, t := range summary.Types {
			fmt.Fprintf(writer, "  %-40s columns=%-5d rows=%d\n", t.Type, t.Columns, t.Rows)
		}
		writer.WriteString("\n")
	}

	if len(summary.SkippedFiles) > 0 {
		writer.WriteString("Skipped Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.SkippedFiles {
			fmt.Fprintf(writer, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(writer, "  Pass:  %s\n", ff.Pass)
			fmt.Fprintf(writer, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// IsReadable reports whether a file can be opened for reading.
func IsReadable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// GetFileSize returns the size of a file in bytes.
func GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
