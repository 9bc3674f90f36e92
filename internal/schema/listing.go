package schema

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/motree-to-csv/internal/xlsxparser"
)

// ParseListing reads a parameter listing, one type per line:
//
//	CELL:CELLID,FREQ,POWER
//	NE:NAME,VERSION
//
// Blank lines and lines starting with '#' are skipped. A type listed twice
// gets the union of its parameters. The returned registry is in listing mode
// and frozen.
func ParseListing(r io.Reader) (*Registry, error) {
	reg := NewListingRegistry()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		moType, params, ok := strings.Cut(line, ":")
		moType = strings.TrimSpace(moType)
		if !ok || moType == "" {
			return nil, fmt.Errorf("listing line %d: expected TYPE:PARAM1,PARAM2,... got %q", lineNo, line)
		}

		if err := reg.Add(moType, splitParameters(params)...); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read listing: %w", err)
	}

	reg.Freeze()
	return reg, nil
}

// LoadListing loads a listing file. Files ending in .xlsx are read as a
// workbook (see xlsxparser.ParseListing), anything else as text.
func LoadListing(path string) (*Registry, error) {
	if isWorkbook(path) {
		entries, err := xlsxparser.ParseListing(path)
		if err != nil {
			return nil, err
		}
		return FromEntries(entries)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open listing: %w", err)
	}
	defer f.Close()

	return ParseListing(f)
}

// FromEntries builds a frozen listing-mode registry from workbook entries.
func FromEntries(entries []xlsxparser.ListingEntry) (*Registry, error) {
	reg := NewListingRegistry()
	for _, e := range entries {
		params := make([]string, 0, len(e.Parameters))
		for _, p := range e.Parameters {
			if p = strings.TrimSpace(p); p != "" {
				params = append(params, p)
			}
		}
		if err := reg.Add(strings.TrimSpace(e.Type), params...); err != nil {
			return nil, err
		}
	}
	reg.Freeze()
	return reg, nil
}

// Entries converts the registry into workbook entries.
func (r *Registry) Entries() []xlsxparser.ListingEntry {
	entries := make([]xlsxparser.ListingEntry, 0, r.Len())
	for _, t := range r.Types() {
		entries = append(entries, xlsxparser.ListingEntry{Type: t, Parameters: r.Columns(t)})
	}
	return entries
}

// WriteListing writes the registry in the text listing format, so that a
// discovery run can be edited by hand and fed back with -c.
func (r *Registry) WriteListing(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, t := range r.Types() {
		if _, err := fmt.Fprintf(bw, "%s:%s\n", t, strings.Join(r.Columns(t), ",")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveListing writes the listing to path, as a workbook when the path ends
// in .xlsx.
func (r *Registry) SaveListing(path string) error {
	if isWorkbook(path) {
		return xlsxparser.WriteListing(path, r.Entries())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create listing file: %w", err)
	}
	if err := r.WriteListing(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write listing file: %w", err)
	}
	return f.Close()
}

func splitParameters(s string) []string {
	var params []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return params
}

func isWorkbook(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}
