// =============================================================================
// MO Tree to CSV Converter - XLSX Listing Parser
// =============================================================================
//
// This module reads and writes parameter listings kept in an XLSX workbook.
// Planners often maintain the list of MOs and parameters to export in a
// spreadsheet; this lets that spreadsheet be passed to -c directly.
//
// WORKBOOK STRUCTURE (Expected Columns):
//   Column positions are configurable via the ListingColumns struct.
//
//   | Column A | Column B  | Column C | Column D | ...
//   |----------|-----------|----------|----------|
//   | MO       | Parameter |          |          |       <- header row, skipped
//   | CELL     | CELLID    | FREQ     | POWER    |       <- wide layout
//   | NE       | NAME      |          |          |
//   | NE       | VERSION   |          |          |       <- long layout also works
//
//   Rows of the same MO are merged in the order they appear. Every sheet
//   whose name does not start with "_" is read, in workbook order.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// =============================================================================
// LISTING STRUCTURE
// =============================================================================

// ListingEntry is one MO type and the parameters to export for it.
type ListingEntry struct {
	// Type is the MO className.
	Type string

	// Parameters are the attribute names, in column order.
	Parameters []string
}

// =============================================================================
// LISTING COLUMN CONFIGURATION
// =============================================================================

// ListingColumns defines where the type and parameters live in a sheet.
// Column and row indices are 0-based (A=0, B=1, ...).
type ListingColumns struct {
	// TypeColumn is the column holding the MO type.
	// Default: 0 (Column A)
	TypeColumn int

	// FirstParameterColumn is the first column holding parameter names.
	// Every non-empty cell from here to the end of the row is a parameter.
	// Default: 1 (Column B)
	FirstParameterColumn int

	// DataStartRow is the row where data begins.
	// Default: 1 (Row 2, below the header)
	DataStartRow int
}

// DefaultListingColumns returns the default column configuration.
func DefaultListingColumns() ListingColumns {
	return ListingColumns{
		TypeColumn:           0, // Column A
		FirstParameterColumn: 1, // Column B
		DataStartRow:         1, // Row 2
	}
}

// DefaultSheetName is the sheet written by WriteListing.
const DefaultSheetName = "Parameters"

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseListing reads a listing workbook using the default layout.
//
// PARAMETERS:
//   - path: The path to the XLSX workbook.
//
// RETURNS:
//   - The entries in workbook order, one per distinct MO type.
//   - An error if the file cannot be read.
func ParseListing(path string) ([]ListingEntry, error) {
	return ParseListingWithConfig(path, DefaultListingColumns())
}

// ParseListingWithConfig reads a listing workbook using a custom layout.
func ParseListingWithConfig(path string, columns ListingColumns) ([]ListingEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open listing workbook: %w", err)
	}
	defer f.Close()

	var (
		entries []ListingEntry
		index   = make(map[string]int)
	)

	for _, sheetName := range f.GetSheetList() {
		if strings.HasPrefix(sheetName, "_") {
			continue
		}

		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet '%s': %w", sheetName, err)
		}

		for i := columns.DataStartRow; i < len(rows); i++ {
			moType, params := parseRow(rows[i], columns)
			if moType == "" {
				continue
			}

			pos, seen := index[moType]
			if !seen {
				pos = len(entries)
				index[moType] = pos
				entries = append(entries, ListingEntry{Type: moType})
			}
			entries[pos].Parameters = appendUnique(entries[pos].Parameters, params...)
		}
	}

	return entries, nil
}

// parseRow extracts the type and parameter names of one row.
func parseRow(row []string, columns ListingColumns) (string, []string) {
	getCell := func(index int) string {
		if index < len(row) {
			return strings.TrimSpace(row[index])
		}
		return ""
	}

	moType := getCell(columns.TypeColumn)
	if moType == "" {
		return "", nil
	}

	var params []string
	for c := columns.FirstParameterColumn; c < len(row); c++ {
		if c == columns.TypeColumn {
			continue
		}
		if p := getCell(c); p != "" {
			params = append(params, p)
		}
	}
	return moType, params
}

// appendUnique appends the values not already in list.
func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}

// =============================================================================
// WRITER FUNCTIONS
// =============================================================================

// WriteListing writes entries as a workbook in the wide layout, readable by
// ParseListing.
//
// PARAMETERS:
//   - path: The workbook to create (overwritten if it exists).
//   - entries: The types and parameters to write.
//
// RETURNS:
//   - An error if the workbook cannot be written.
func WriteListing(path string, entries []ListingEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), DefaultSheetName); err != nil {
		return fmt.Errorf("failed to name listing sheet: %w", err)
	}

	header := []interface{}{"MO", "Parameters"}
	if err := f.SetSheetRow(DefaultSheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write listing header: %w", err)
	}

	for i, e := range entries {
		row := make([]interface{}, 0, len(e.Parameters)+1)
		row = append(row, e.Type)
		for _, p := range e.Parameters {
			row = append(row, p)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(DefaultSheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write listing row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save listing workbook: %w", err)
	}
	return nil
}
