// Package output provides the per-type table writers the row emitter writes
// to.
//
// A Factory opens one Sink per MO type. The sink receives the header row once
// and then one row per object instance. All sinks write to local files inside
// the output directory:
//
//   - csv:     <outdir>/<TYPE>.csv
//   - xlsx:    <outdir>/motree.xlsx, one sheet per type
//   - parquet: <outdir>/<TYPE>.parquet
//   - sqlite:  <outdir>/motree.db, one table per type
//
// Values are handed to sinks unescaped; each sink applies its own encoding.
package output

import (
	"errors"
	"fmt"
	"strings"
)

// Sink receives the rows of one MO type.
type Sink interface {
	WriteHeader(columns []string) error
	WriteRow(values []string) error
	Close() error
}

// Factory opens sinks by MO type and owns any state they share.
type Factory interface {
	Open(moType string) (Sink, error)
	Close() error
}

// Supported format names.
const (
	FormatCSV     = "csv"
	FormatXLSX    = "xlsx"
	FormatParquet = "parquet"
	FormatSQLite  = "sqlite"
)

// Formats lists every supported format name.
var Formats = []string{FormatCSV, FormatXLSX, FormatParquet, FormatSQLite}

// Default file names of the single-file formats.
const (
	WorkbookFileName = "motree.xlsx"
	DatabaseFileName = "motree.db"
)

// Error reports a failure to create or write an output resource. Output
// errors are fatal to a run.
type Error struct {
	Format string
	Type   string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s output for %s (%s): %v", e.Format, e.Type, e.Path, e.Err)
	}
	return fmt.Sprintf("%s output (%s): %v", e.Format, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsOutputError reports whether err is (or wraps) an output Error.
func IsOutputError(err error) bool {
	var oe *Error
	return errors.As(err, &oe)
}

// NewFactory builds a factory writing the given formats into dir.
// Several formats are combined with a MultiFactory.
func NewFactory(dir string, formats []string) (Factory, error) {
	if len(formats) == 0 {
		formats = []string{FormatCSV}
	}

	factories := make([]Factory, 0, len(formats))
	for _, format := range formats {
		var f Factory
		switch strings.ToLower(strings.TrimSpace(format)) {
		case FormatCSV:
			f = NewCSVFactory(dir)
		case FormatXLSX:
			f = NewXLSXFactory(dir)
		case FormatParquet:
			f = NewParquetFactory(dir)
		case FormatSQLite:
			f = NewSQLiteFactory(dir)
		default:
			closeAll(factories)
			return nil, fmt.Errorf("unsupported output format '%s'", format)
		}
		factories = append(factories, f)
	}

	if len(factories) == 1 {
		return factories[0], nil
	}
	return &MultiFactory{factories: factories}, nil
}

func closeAll(factories []Factory) {
	for _, f := range factories {
		f.Close()
	}
}

// =============================================================================
// MULTI FACTORY
// =============================================================================

// MultiFactory writes every row to several formats.
type MultiFactory struct {
	factories []Factory
}

// NewMultiFactory combines factories.
func NewMultiFactory(factories ...Factory) *MultiFactory {
	return &MultiFactory{factories: factories}
}

// Open opens a sink in every underlying factory.
func (m *MultiFactory) Open(moType string) (Sink, error) {
	sinks := make(multiSink, 0, len(m.factories))
	for _, f := range m.factories {
		s, err := f.Open(moType)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// Close closes every underlying factory and returns the first error.
func (m *MultiFactory) Close() error {
	var first error
	for _, f := range m.factories {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type multiSink []Sink

func (m multiSink) WriteHeader(columns []string) error {
	for _, s := range m {
		if err := s.WriteHeader(columns); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) WriteRow(values []string) error {
	for _, s := range m {
		if err := s.WriteRow(values); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
