package output

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// maxSheetNameLength is Excel's limit on sheet names.
const maxSheetNameLength = 31

// XLSXFactory writes every MO type to its own sheet of one workbook. The
// workbook is saved when the factory is closed.
type XLSXFactory struct {
	path   string
	file   *excelize.File
	sheets map[string]bool // lower-cased sheet names in use
	used   int
}

// NewXLSXFactory creates a workbook factory writing <dir>/motree.xlsx.
func NewXLSXFactory(dir string) *XLSXFactory {
	return &XLSXFactory{
		path:   filepath.Join(dir, WorkbookFileName),
		file:   excelize.NewFile(),
		sheets: make(map[string]bool),
	}
}

// Path returns the workbook path.
func (f *XLSXFactory) Path() string {
	return f.path
}

// Open adds a sheet for the type.
func (f *XLSXFactory) Open(moType string) (Sink, error) {
	name := f.uniqueSheetName(moType)

	if f.used == 0 {
		if err := f.file.SetSheetName(f.file.GetSheetName(0), name); err != nil {
			return nil, f.wrap(moType, err)
		}
	} else if _, err := f.file.NewSheet(name); err != nil {
		return nil, f.wrap(moType, err)
	}

	f.used++
	f.sheets[strings.ToLower(name)] = true

	return &xlsxSink{factory: f, moType: moType, sheet: name}, nil
}

// Close saves the workbook if at least one sheet was written.
func (f *XLSXFactory) Close() error {
	defer f.file.Close()

	if f.used == 0 {
		return nil
	}
	if err := f.file.SaveAs(f.path); err != nil {
		return f.wrap("", err)
	}
	return nil
}

// uniqueSheetName derives a valid, unused sheet name from an MO type.
func (f *XLSXFactory) uniqueSheetName(moType string) string {
	base := SheetName(moType)

	name := base
	for i := 2; f.sheets[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf("~%d", i)
		name = truncateRunes(base, maxSheetNameLength-len(suffix)) + suffix
	}
	return name
}

func (f *XLSXFactory) wrap(moType string, err error) error {
	return &Error{Format: FormatXLSX, Type: moType, Path: f.path, Err: err}
}

// SheetName makes an MO type a valid Excel sheet name.
func SheetName(moType string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, moType)
	name = strings.Trim(name, "'")

	if name == "" {
		name = "MO"
	}
	return truncateRunes(name, maxSheetNameLength)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type xlsxSink struct {
	factory *XLSXFactory
	moType  string
	sheet   string
	row     int
}

func (s *xlsxSink) WriteHeader(columns []string) error {
	return s.write(columns)
}

func (s *xlsxSink) WriteRow(values []string) error {
	return s.write(values)
}

func (s *xlsxSink) write(fields []string) error {
	s.row++

	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return s.factory.wrap(s.moType, err)
	}

	row := make([]interface{}, len(fields))
	for i, v := range fields {
		row[i] = v
	}
	if err := s.factory.file.SetSheetRow(s.sheet, cell, &row); err != nil {
		return s.factory.wrap(s.moType, err)
	}
	return nil
}

// Close is a no-op; the workbook is saved by the factory.
func (s *xlsxSink) Close() error {
	return nil
}
