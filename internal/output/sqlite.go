package output

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteFactory writes every MO type to its own table of one local SQLite
// database. All inserts of a run share a single transaction, committed when
// the factory is closed. An existing database file is replaced.
type SQLiteFactory struct {
	path   string
	db     *sql.DB
	tx     *sql.Tx
	tables map[string]bool // lower-cased table names in use
}

// NewSQLiteFactory creates a factory writing <dir>/motree.db.
func NewSQLiteFactory(dir string) *SQLiteFactory {
	return &SQLiteFactory{
		path:   filepath.Join(dir, DatabaseFileName),
		tables: make(map[string]bool),
	}
}

// Path returns the database path.
func (f *SQLiteFactory) Path() string {
	return f.path
}

// open creates the database on first use.
func (f *SQLiteFactory) open() error {
	if f.tx != nil {
		return nil
	}

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	db, err := sql.Open("sqlite", f.path)
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return err
	}

	f.db, f.tx = db, tx
	return nil
}

// Open reserves a table name for the type. The table is created when the
// header arrives.
func (f *SQLiteFactory) Open(moType string) (Sink, error) {
	if err := f.open(); err != nil {
		return nil, f.wrap(moType, err)
	}

	table := uniqueName(moType, f.tables)
	f.tables[strings.ToLower(table)] = true

	return &sqliteSink{factory: f, moType: moType, table: table}, nil
}

// Close commits all rows and closes the database.
func (f *SQLiteFactory) Close() error {
	if f.tx == nil {
		return nil
	}

	commitErr := f.tx.Commit()
	closeErr := f.db.Close()
	f.tx, f.db = nil, nil

	if commitErr != nil {
		return f.wrap("", commitErr)
	}
	if closeErr != nil {
		return f.wrap("", closeErr)
	}
	return nil
}

func (f *SQLiteFactory) wrap(moType string, err error) error {
	return &Error{Format: FormatSQLite, Type: moType, Path: f.path, Err: err}
}

type sqliteSink struct {
	factory *SQLiteFactory
	moType  string
	table   string
	insert  *sql.Stmt
}

func (s *sqliteSink) WriteHeader(columns []string) error {
	used := make(map[string]bool, len(columns))
	defs := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		name := uniqueName(c, used)
		used[strings.ToLower(name)] = true
		defs[i] = quoteIdent(name) + " TEXT"
		marks[i] = "?"
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(s.table), strings.Join(defs, ", "))
	if _, err := s.factory.tx.Exec(create); err != nil {
		return s.factory.wrap(s.moType, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(s.table), strings.Join(marks, ", "))
	stmt, err := s.factory.tx.Prepare(insert)
	if err != nil {
		return s.factory.wrap(s.moType, err)
	}
	s.insert = stmt
	return nil
}

func (s *sqliteSink) WriteRow(values []string) error {
	if s.insert == nil {
		return s.factory.wrap(s.moType, fmt.Errorf("row written before header"))
	}

	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	if _, err := s.insert.Exec(args...); err != nil {
		return s.factory.wrap(s.moType, err)
	}
	return nil
}

func (s *sqliteSink) Close() error {
	if s.insert == nil {
		return nil
	}
	if err := s.insert.Close(); err != nil {
		return s.factory.wrap(s.moType, err)
	}
	return nil
}

// uniqueName returns name, or name with a numeric suffix when another name
// equal to it ignoring case is already taken. SQLite identifiers are
// case-insensitive.
func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		candidate = fmt.Sprintf("%s_%d", name, i)
	}
	return candidate
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
