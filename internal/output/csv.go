package output

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Escape formats a value for a CSV field. A value containing a comma or a
// double quote is wrapped in double quotes with inner quotes doubled. Nothing
// else is escaped; values without commas or quotes are returned unchanged.
func Escape(s string) string {
	if !strings.ContainsAny(s, `,"`) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// FormatRow joins the fields of a data row into one CSV line without the
// newline. The first field is the dump file name and is written as is; every
// other field is escaped.
func FormatRow(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
			f = Escape(f)
		}
		b.WriteString(f)
	}
	return b.String()
}

// CSVFactory creates <dir>/<TYPE>.csv per MO type.
type CSVFactory struct {
	dir   string
	names *fileNames
}

// NewCSVFactory creates a CSV factory writing into dir.
func NewCSVFactory(dir string) *CSVFactory {
	return &CSVFactory{dir: dir, names: newFileNames(".csv")}
}

// Path returns the file a type is written to.
func (f *CSVFactory) Path(moType string) string {
	return f.names.path(f.dir, moType)
}

// Open creates (truncating) the type's CSV file.
func (f *CSVFactory) Open(moType string) (Sink, error) {
	path := f.names.assign(f.dir, moType)
	file, err := os.Create(path)
	if err != nil {
		return nil, &Error{Format: FormatCSV, Type: moType, Path: path, Err: err}
	}
	return &csvSink{
		moType: moType,
		path:   path,
		file:   file,
		w:      bufio.NewWriterSize(file, 64*1024),
	}, nil
}

// Close is a no-op; every CSV sink owns its file.
func (f *CSVFactory) Close() error {
	return nil
}

type csvSink struct {
	moType string
	path   string
	file   *os.File
	w      *bufio.Writer
}

func (s *csvSink) WriteHeader(columns []string) error {
	return s.writeLine(strings.Join(columns, ","))
}

func (s *csvSink) WriteRow(values []string) error {
	return s.writeLine(FormatRow(values))
}

func (s *csvSink) writeLine(line string) error {
	if _, err := s.w.WriteString(line); err != nil {
		return s.wrap(err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return s.wrap(err)
	}
	return nil
}

func (s *csvSink) Close() error {
	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	if flushErr != nil {
		return s.wrap(flushErr)
	}
	if closeErr != nil {
		return s.wrap(closeErr)
	}
	return nil
}

func (s *csvSink) wrap(err error) error {
	return &Error{Format: FormatCSV, Type: s.moType, Path: s.path, Err: err}
}

// FileName makes an MO type safe to use as a file name.
func FileName(moType string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, moType)
}

// fileNames hands out one file per MO type. Types whose names map to the same
// file name (A/B and A_B) get a _N suffix instead of sharing a file. Names are
// compared case-insensitively for case-insensitive file systems.
type fileNames struct {
	ext   string
	used  map[string]bool
	names map[string]string
}

func newFileNames(ext string) *fileNames {
	return &fileNames{ext: ext, used: make(map[string]bool), names: make(map[string]string)}
}

// assign reserves the file name of a type and returns its path.
func (n *fileNames) assign(dir, moType string) string {
	if name, ok := n.names[moType]; ok {
		return filepath.Join(dir, name+n.ext)
	}
	name := uniqueName(FileName(moType), n.used)
	n.used[strings.ToLower(name)] = true
	n.names[moType] = name
	return filepath.Join(dir, name+n.ext)
}

// path returns the assigned path of a type, or the path it would get if it
// were opened first.
func (n *fileNames) path(dir, moType string) string {
	if name, ok := n.names[moType]; ok {
		return filepath.Join(dir, name+n.ext)
	}
	return filepath.Join(dir, FileName(moType)+n.ext)
}
