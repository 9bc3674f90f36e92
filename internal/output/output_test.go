package output

import (
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"with space", "with space"},
		{"semi;colon", "semi;colon"},
		{"a,b", `"a,b"`},
		{`a"b`, `"a""b"`},
		{`x,"y"`, `"x,""y"""`},
		{"line\nbreak", "line\nbreak"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.in))
		})
	}
}

func TestFormatRow(t *testing.T) {
	got := FormatRow([]string{"A20.xml", "BSC1", "1,2", `q"`, ""})
	assert.Equal(t, `A20.xml,BSC1,"1,2","q""",`, got)
}

func TestFormatRow_FileNameIsNotEscaped(t *testing.T) {
	got := FormatRow([]string{"dump,1.xml", "BSC,1", "x"})
	assert.Equal(t, `dump,1.xml,"BSC,1",x`, got)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Cell", FileName("Cell"))
	assert.Equal(t, "a_b_c", FileName("a/b:c"))
}

func writeTable(t *testing.T, f Factory, moType string, header []string, rows ...[]string) {
	t.Helper()

	s, err := f.Open(moType)
	require.NoError(t, err)
	require.NoError(t, s.WriteHeader(header))
	for _, r := range rows {
		require.NoError(t, s.WriteRow(r))
	}
	require.NoError(t, s.Close())
}

func TestCSVFactory(t *testing.T) {
	dir := t.TempDir()
	f := NewCSVFactory(dir)

	writeTable(t, f, "Cell",
		[]string{"FILENAME", "NODENAME", "CELLID", "LABEL"},
		[]string{"a.xml", "BSC1", "1", "north,east"},
		[]string{"a.xml", "BSC1", "2", ""},
	)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(filepath.Join(dir, "Cell.csv"))
	require.NoError(t, err)
	assert.Equal(t,
		"FILENAME,NODENAME,CELLID,LABEL\n"+
			"a.xml,BSC1,1,\"north,east\"\n"+
			"a.xml,BSC1,2,\n",
		string(data))
}

func TestCSVFactory_HeaderIsNotEscaped(t *testing.T) {
	dir := t.TempDir()
	f := NewCSVFactory(dir)

	writeTable(t, f, "Cell",
		[]string{"FILENAME", "NODENAME", `odd"name`},
		[]string{"a.xml", "BSC1", `v"1`},
	)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(filepath.Join(dir, "Cell.csv"))
	require.NoError(t, err)
	assert.Equal(t, "FILENAME,NODENAME,odd\"name\na.xml,BSC1,\"v\"\"1\"\n", string(data))
}

func TestCSVFactory_FileNameCollision(t *testing.T) {
	dir := t.TempDir()
	f := NewCSVFactory(dir)

	writeTable(t, f, "A_B",
		[]string{"FILENAME", "NODENAME", "X"},
		[]string{"a.xml", "N", "plain"},
	)
	writeTable(t, f, "A/B",
		[]string{"FILENAME", "NODENAME", "X"},
		[]string{"a.xml", "N", "slash"},
	)
	writeTable(t, f, "a_b",
		[]string{"FILENAME", "NODENAME", "X"},
		[]string{"a.xml", "N", "lower"},
	)
	require.NoError(t, f.Close())

	assert.Equal(t, filepath.Join(dir, "A_B.csv"), f.Path("A_B"))
	assert.Equal(t, filepath.Join(dir, "A_B_2.csv"), f.Path("A/B"))
	assert.Equal(t, filepath.Join(dir, "a_b_3.csv"), f.Path("a_b"))

	for moType, value := range map[string]string{"A_B": "plain", "A/B": "slash", "a_b": "lower"} {
		data, err := os.ReadFile(f.Path(moType))
		require.NoError(t, err)
		assert.Equal(t, "FILENAME,NODENAME,X\na.xml,N,"+value+"\n", string(data), moType)
	}
}

func TestCSVFactory_MissingDirectory(t *testing.T) {
	f := NewCSVFactory(filepath.Join(t.TempDir(), "missing"))

	_, err := f.Open("Cell")
	require.Error(t, err)
	assert.True(t, IsOutputError(err))

	var oe *Error
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, FormatCSV, oe.Format)
	assert.Equal(t, "Cell", oe.Type)
}

func TestXLSXFactory(t *testing.T) {
	dir := t.TempDir()
	f := NewXLSXFactory(dir)

	writeTable(t, f, "Cell",
		[]string{"FILENAME", "NODENAME", "CELLID"},
		[]string{"a.xml", "BSC1", "1"},
	)
	writeTable(t, f, "TRX",
		[]string{"FILENAME", "NODENAME", "TRXID"},
		[]string{"a.xml", "BSC1", "7"},
		[]string{"b.xml", "BSC2", "8"},
	)
	require.NoError(t, f.Close())

	wb, err := excelize.OpenFile(f.Path())
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{"Cell", "TRX"}, wb.GetSheetList())

	rows, err := wb.GetRows("TRX")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"FILENAME", "NODENAME", "TRXID"},
		{"a.xml", "BSC1", "7"},
		{"b.xml", "BSC2", "8"},
	}, rows)
}

func TestXLSXFactory_UnusedWritesNothing(t *testing.T) {
	dir := t.TempDir()
	f := NewXLSXFactory(dir)
	require.NoError(t, f.Close())

	_, err := os.Stat(filepath.Join(dir, WorkbookFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Cell", SheetName("Cell"))
	assert.Equal(t, "a_b_c", SheetName("a/b[c"))
	assert.Equal(t, "MO", SheetName("''"))
	assert.Len(t, []rune(SheetName("ÄÖÜäöüÄÖÜäöüÄÖÜäöüÄÖÜäöüÄÖÜäöüÄÖÜ")), maxSheetNameLength)
}

func TestXLSXFactory_SheetNameCollision(t *testing.T) {
	f := NewXLSXFactory(t.TempDir())
	defer f.Close()

	a, err := f.Open("Cell")
	require.NoError(t, err)
	b, err := f.Open("CELL")
	require.NoError(t, err)

	assert.Equal(t, "Cell", a.(*xlsxSink).sheet)
	assert.Equal(t, "CELL~2", b.(*xlsxSink).sheet)
}

func TestParquetFactory(t *testing.T) {
	dir := t.TempDir()
	f := NewParquetFactory(dir)

	header := []string{"FILENAME", "NODENAME", "ZETA", "ALPHA"}
	writeTable(t, f, "Cell", header,
		[]string{"a.xml", "BSC1", "z1", "a1"},
		[]string{"a.xml", "BSC1", "", "a2"},
	)
	require.NoError(t, f.Close())

	file, err := os.Open(f.Path("Cell"))
	require.NoError(t, err)
	defer file.Close()

	stat, err := file.Stat()
	require.NoError(t, err)

	pf, err := parquet.OpenFile(file, stat.Size())
	require.NoError(t, err)
	assert.Equal(t, int64(2), pf.NumRows())

	leaf := make(map[string]int)
	for i, path := range pf.Schema().Columns() {
		leaf[path[0]] = i
	}
	for _, c := range header {
		assert.Contains(t, leaf, c)
	}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	rows := make([]parquet.Row, 2)
	n, err := reader.ReadRows(rows)
	if err != nil {
		require.ErrorIs(t, err, io.EOF)
	}
	require.Equal(t, 2, n)

	assert.Equal(t, "z1", string(rows[0][leaf["ZETA"]].ByteArray()))
	assert.Equal(t, "a1", string(rows[0][leaf["ALPHA"]].ByteArray()))
	assert.Equal(t, "", string(rows[1][leaf["ZETA"]].ByteArray()))
	assert.Equal(t, "BSC1", string(rows[1][leaf["NODENAME"]].ByteArray()))
}

func TestParquetFactory_FileNameCollision(t *testing.T) {
	dir := t.TempDir()
	f := NewParquetFactory(dir)

	header := []string{"FILENAME", "NODENAME", "X"}
	writeTable(t, f, "A_B", header, []string{"a.xml", "N", "1"})
	writeTable(t, f, "A/B", header, []string{"a.xml", "N", "2"}, []string{"a.xml", "N", "3"})
	require.NoError(t, f.Close())

	assert.NotEqual(t, f.Path("A_B"), f.Path("A/B"))

	for moType, want := range map[string]int64{"A_B": 1, "A/B": 2} {
		file, err := os.Open(f.Path(moType))
		require.NoError(t, err)
		stat, err := file.Stat()
		require.NoError(t, err)
		pf, err := parquet.OpenFile(file, stat.Size())
		require.NoError(t, err)
		assert.Equal(t, want, pf.NumRows(), moType)
		file.Close()
	}
}

func TestSQLiteFactory(t *testing.T) {
	dir := t.TempDir()
	f := NewSQLiteFactory(dir)

	writeTable(t, f, "Cell",
		[]string{"FILENAME", "NODENAME", "CELLID", "cellid"},
		[]string{"a.xml", "BSC1", "1", "x"},
		[]string{"b.xml", "BSC2", "2", "y"},
	)
	writeTable(t, f, "CELL",
		[]string{"FILENAME", "NODENAME", "X"},
		[]string{"a.xml", "BSC1", "it's"},
	)
	require.NoError(t, f.Close())

	db, err := sql.Open("sqlite", f.Path())
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "Cell"`).Scan(&count))
	assert.Equal(t, 2, count)

	var id, lower string
	require.NoError(t, db.QueryRow(`SELECT "CELLID", "cellid_2" FROM "Cell" WHERE "NODENAME" = ?`, "BSC2").Scan(&id, &lower))
	assert.Equal(t, "2", id)
	assert.Equal(t, "y", lower)

	var x string
	require.NoError(t, db.QueryRow(`SELECT "X" FROM "CELL_2"`).Scan(&x))
	assert.Equal(t, "it's", x)
}

func TestSQLiteFactory_UnusedWritesNothing(t *testing.T) {
	dir := t.TempDir()
	f := NewSQLiteFactory(dir)
	require.NoError(t, f.Close())

	_, err := os.Stat(filepath.Join(dir, DatabaseFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestNewFactory(t *testing.T) {
	dir := t.TempDir()

	f, err := NewFactory(dir, nil)
	require.NoError(t, err)
	assert.IsType(t, &CSVFactory{}, f)

	f, err = NewFactory(dir, []string{"csv", " XLSX "})
	require.NoError(t, err)
	assert.IsType(t, &MultiFactory{}, f)
	require.NoError(t, f.Close())

	_, err = NewFactory(dir, []string{"csv", "json"})
	assert.EqualError(t, err, "unsupported output format 'json'")
}

func TestMultiFactory(t *testing.T) {
	dir := t.TempDir()
	f := NewMultiFactory(NewCSVFactory(dir), NewXLSXFactory(dir))

	writeTable(t, f, "Cell",
		[]string{"FILENAME", "NODENAME", "CELLID"},
		[]string{"a.xml", "BSC1", "1"},
	)
	require.NoError(t, f.Close())

	assert.FileExists(t, filepath.Join(dir, "Cell.csv"))
	assert.FileExists(t, filepath.Join(dir, WorkbookFileName))
}
