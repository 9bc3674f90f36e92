package output

import (
	"fmt"
	"os"

	"github.com/segmentio/parquet-go"
)

// ParquetFactory creates <dir>/<TYPE>.parquet per MO type. Every column is
// a UTF-8 string; absent attributes are written as empty strings, the same
// as in the CSV output.
type ParquetFactory struct {
	dir   string
	names *fileNames
}

// NewParquetFactory creates a parquet factory writing into dir.
func NewParquetFactory(dir string) *ParquetFactory {
	return &ParquetFactory{dir: dir, names: newFileNames(".parquet")}
}

// Path returns the file a type is written to.
func (f *ParquetFactory) Path(moType string) string {
	return f.names.path(f.dir, moType)
}

// Open creates (truncating) the type's parquet file. The parquet schema is
// built when the header arrives.
func (f *ParquetFactory) Open(moType string) (Sink, error) {
	path := f.names.assign(f.dir, moType)
	file, err := os.Create(path)
	if err != nil {
		return nil, &Error{Format: FormatParquet, Type: moType, Path: path, Err: err}
	}
	return &parquetSink{moType: moType, path: path, file: file}, nil
}

// Close is a no-op; every parquet sink owns its file.
func (f *ParquetFactory) Close() error {
	return nil
}

type parquetSink struct {
	moType string
	path   string
	file   *os.File
	writer *parquet.Writer

	// leaf maps header position -> parquet leaf column index. parquet
	// groups order their fields by name, not by insertion.
	leaf []int
}

func (s *parquetSink) WriteHeader(columns []string) error {
	group := make(parquet.Group, len(columns))
	for _, c := range columns {
		group[c] = parquet.String()
	}
	schema := parquet.NewSchema(s.moType, group)

	position := make(map[string]int, len(columns))
	for i, path := range schema.Columns() {
		position[path[0]] = i
	}

	s.leaf = make([]int, len(columns))
	for i, c := range columns {
		idx, ok := position[c]
		if !ok {
			return s.wrap(fmt.Errorf("column %q missing from parquet schema", c))
		}
		s.leaf[i] = idx
	}

	s.writer = parquet.NewWriter(s.file, schema)
	return nil
}

func (s *parquetSink) WriteRow(values []string) error {
	if s.writer == nil {
		return s.wrap(fmt.Errorf("row written before header"))
	}

	row := make(parquet.Row, len(s.leaf))
	for i, idx := range s.leaf {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		row[idx] = parquet.ByteArrayValue([]byte(v)).Level(0, 0, idx)
	}

	if _, err := s.writer.WriteRows([]parquet.Row{row}); err != nil {
		return s.wrap(err)
	}
	return nil
}

func (s *parquetSink) Close() error {
	var writeErr error
	if s.writer != nil {
		writeErr = s.writer.Close()
	}
	closeErr := s.file.Close()

	if writeErr != nil {
		return s.wrap(writeErr)
	}
	if closeErr != nil {
		return s.wrap(closeErr)
	}
	return nil
}

func (s *parquetSink) wrap(err error) error {
	return &Error{Format: FormatParquet, Type: s.moType, Path: s.path, Err: err}
}
