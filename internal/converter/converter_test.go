package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ginjaninja78/motree-to-csv/internal/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger keeps formatted messages per level.
type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) add(level, msg string, args ...interface{}) {
	l.lines = append(l.lines, level+" "+fmt.Sprintf(msg, args...))
}

func (l *recordingLogger) Debug(msg string, args ...interface{}) { l.add("DEBUG", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...interface{})  { l.add("INFO", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...interface{})  { l.add("WARN", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...interface{}) { l.add("ERROR", msg, args...) }

func (l *recordingLogger) contains(s string) bool {
	for _, line := range l.lines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func run(t *testing.T, opts Options) (Result, *recordingLogger) {
	t.Helper()
	logger := &recordingLogger{}
	c := New(opts)
	c.SetLogger(logger)
	return c.Run(), logger
}

const siteA = `<?xml version="1.0" encoding="UTF-8"?>
<MO className="BSC">
  <attr name="name">BSC_A</attr>
  <MO className="CELL">
    <attr name="A">a1</attr>
    <attr name="B">b1</attr>
  </MO>
</MO>`

const siteB = `<?xml version="1.0" encoding="UTF-8"?>
<MO className="BSC">
  <attr name="name">BSC_B</attr>
  <MO className="CELL">
    <attr name="B">b2</attr>
    <attr name="C">c,2</attr>
  </MO>
</MO>`

func TestRun_DiscoveryUnionHeader(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, in, "a.xml", siteA)
	writeFile(t, in, "b.xml", siteB)

	result, logger := run(t, Options{Input: in, OutputDir: out})
	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.Equal(t, Done, result.State)
	assert.Equal(t, "discovery", result.Mode)

	assert.Equal(t,
		"FILENAME,NODENAME,A,B,C\n"+
			"a.xml,BSC_A,a1,b1,\n"+
			"b.xml,BSC_B,,b2,\"c,2\"\n",
		readFile(t, filepath.Join(out, "CELL.csv")))

	assert.Equal(t,
		"FILENAME,NODENAME,name\n"+
			"a.xml,BSC_A,BSC_A\n"+
			"b.xml,BSC_B,BSC_B\n",
		readFile(t, filepath.Join(out, "BSC.csv")))

	assert.Equal(t, 2, result.Stats.FilesParsed)
	assert.Equal(t, 4, result.Stats.RowsWritten)
	assert.Equal(t, []TypeStats{
		{Type: "CELL", Columns: 3, Rows: 2},
		{Type: "BSC", Columns: 1, Rows: 2},
	}, result.Types)

	assert.True(t, logger.contains("INFO Extracting parameters from a.xml"))
	assert.True(t, logger.contains("INFO Parsing b.xml"))
}

func TestRun_ListingRestrictsTypes(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	dump := writeFile(t, in, "dump.xml", `<MO className="Site">
  <attr name="name">S1</attr>
  <MO className="Cell"><attr name="freq">900</attr><attr name="tilt">2</attr></MO>
</MO>`)
	listing := writeFile(t, t.TempDir(), "params.txt", "Cell:freq,power\n")

	result, logger := run(t, Options{Input: dump, OutputDir: out, ParameterFile: listing})
	require.NoError(t, result.Error)
	assert.Equal(t, "listing", result.Mode)

	assert.Equal(t, "FILENAME,NODENAME,freq,power\ndump.xml,S1,900,\n", readFile(t, filepath.Join(out, "Cell.csv")))
	assert.NoFileExists(t, filepath.Join(out, "Site.csv"))

	assert.False(t, logger.contains("Extracting parameters"), "discovery must be skipped")
}

func TestRun_DirectorySkipsBrokenFile(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, in, "a_broken.xml", `<MO className="CELL"><attr name="X">1</attr>`)
	writeFile(t, in, "b_good.xml", siteA)

	result, logger := run(t, Options{Input: in, OutputDir: out})
	require.NoError(t, result.Error)
	assert.True(t, result.Success)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, filepath.Join(in, "a_broken.xml"), result.Skipped[0].Path)
	assert.Equal(t, DiscoveringSchema, result.Skipped[0].State)
	assert.True(t, IsParseError(result.Skipped[0].Err))
	assert.True(t, logger.contains("WARN Skipping file: a_broken.xml"))

	cells := readFile(t, filepath.Join(out, "CELL.csv"))
	assert.Equal(t, "FILENAME,NODENAME,A,B\nb_good.xml,BSC_A,a1,b1\n", cells)
	assert.NotContains(t, cells, "a_broken.xml")
	assert.False(t, logger.contains("Parsing a_broken.xml"), "skipped file must not be re-read")
}

func TestRun_SingleFileParseErrorFails(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	dump := writeFile(t, in, "broken.xml", `<MO className="CELL"><attr name="X">1</attr>`)

	result, _ := run(t, Options{Input: dump, OutputDir: out})
	require.Error(t, result.Error)
	assert.False(t, result.Success)
	assert.Equal(t, Failed, result.State)
	assert.True(t, IsParseError(result.Error))
	assert.NoFileExists(t, filepath.Join(out, "CELL.csv"))
}

func TestRun_SingleFileParseErrorInListingModeFails(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	dump := writeFile(t, in, "broken.xml", `<MO className="CELL"><attr name="X">1</attr></MO><`)
	listing := writeFile(t, t.TempDir(), "params.txt", "CELL:X\n")

	result, _ := run(t, Options{Input: dump, OutputDir: out, ParameterFile: listing})
	require.Error(t, result.Error)
	assert.Equal(t, Failed, result.State)
}

func TestRun_NestedNameCapture(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	dump := writeFile(t, in, "nested.xml", `<MO className="NE">
  <attr name="name">ROOT</attr>
  <MO className="CELL">
    <attr name="name">CELL_1</attr>
    <attr name="freq">1800</attr>
  </MO>
</MO>`)

	result, _ := run(t, Options{Input: dump, OutputDir: out})
	require.NoError(t, result.Error)

	assert.Equal(t, "FILENAME,NODENAME,name,freq\nnested.xml,ROOT,CELL_1,1800\n", readFile(t, filepath.Join(out, "CELL.csv")))
	assert.Equal(t, "FILENAME,NODENAME,name\nnested.xml,ROOT,ROOT\n", readFile(t, filepath.Join(out, "NE.csv")))
}

func TestRun_SeveralRootObjects(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	dump := writeFile(t, in, "m.xml", `<dump>
  <MO className="NE">
    <attr name="name">FIRST</attr>
    <MO className="C"><attr name="x">1</attr></MO>
  </MO>
  <MO className="NE">
    <attr name="name">SECOND</attr>
  </MO>
</dump>`)

	result, _ := run(t, Options{Input: dump, OutputDir: out})
	require.NoError(t, result.Error)

	assert.Equal(t, "FILENAME,NODENAME,name\nm.xml,FIRST,FIRST\nm.xml,SECOND,SECOND\n", readFile(t, filepath.Join(out, "NE.csv")))
	assert.Equal(t, "FILENAME,NODENAME,x\nm.xml,FIRST,1\n", readFile(t, filepath.Join(out, "C.csv")))
}

func TestRun_TypesSharingAFileName(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	dump := writeFile(t, in, "d.xml", `<MO className="NE">
  <attr name="name">N</attr>
  <MO className="A/B"><attr name="v">slash</attr></MO>
  <MO className="A_B"><attr name="v">plain</attr></MO>
</MO>`)

	result, _ := run(t, Options{Input: dump, OutputDir: out})
	require.NoError(t, result.Error)

	assert.Equal(t, "FILENAME,NODENAME,v\nd.xml,N,slash\n", readFile(t, filepath.Join(out, "A_B.csv")))
	assert.Equal(t, "FILENAME,NODENAME,v\nd.xml,N,plain\n", readFile(t, filepath.Join(out, "A_B_2.csv")))
}

func TestRun_ParametersOnlyWritesListing(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, in, "a.xml", siteA)
	writeFile(t, in, "b.xml", siteB)

	var listing bytes.Buffer
	c := New(Options{Input: in, OutputDir: out, ParametersOnly: true})
	c.SetLogger(NopLogger())
	c.SetListingWriter(&listing)

	result := c.Run()
	require.NoError(t, result.Error)
	assert.Equal(t, Done, result.State)

	assert.Equal(t, "CELL:A,B,C\nBSC:name\n", listing.String())

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries, "no rows in discovery-only mode")
}

func TestRun_ParametersOnlyListingFileRoundTrip(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	dump := writeFile(t, in, "a.xml", siteA)
	listingPath := filepath.Join(t.TempDir(), "params.xlsx")

	result, _ := run(t, Options{Input: dump, ParametersOnly: true, ListingOutput: listingPath})
	require.NoError(t, result.Error)
	assert.FileExists(t, listingPath)

	result, _ = run(t, Options{Input: dump, OutputDir: out, ParameterFile: listingPath})
	require.NoError(t, result.Error)
	assert.Equal(t, "FILENAME,NODENAME,A,B\na.xml,BSC_A,a1,b1\n", readFile(t, filepath.Join(out, "CELL.csv")))
}

func TestRun_OutputErrorIsFatal(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "a.xml", siteA)
	writeFile(t, in, "b.xml", siteB)

	c := New(Options{Input: in, OutputDir: t.TempDir()})
	c.SetLogger(NopLogger())
	c.SetFactoryFunc(func(string, []string) (output.Factory, error) {
		return failingFactory{}, nil
	})

	result := c.Run()
	require.Error(t, result.Error)
	assert.Equal(t, Failed, result.State)
	assert.True(t, IsOutputError(result.Error))
	assert.Empty(t, result.Skipped, "output errors are not file-scoped")
}

func TestRun_MissingInput(t *testing.T) {
	result, _ := run(t, Options{Input: filepath.Join(t.TempDir(), "nope"), OutputDir: t.TempDir()})
	require.Error(t, result.Error)
	assert.Equal(t, Failed, result.State)
}

func TestRun_MultipleFormats(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	dump := writeFile(t, in, "a.xml", siteA)

	result, _ := run(t, Options{Input: dump, OutputDir: out, Formats: []string{"csv", "xlsx", "sqlite", "parquet"}})
	require.NoError(t, result.Error)

	assert.FileExists(t, filepath.Join(out, "CELL.csv"))
	assert.FileExists(t, filepath.Join(out, "CELL.parquet"))
	assert.FileExists(t, filepath.Join(out, output.WorkbookFileName))
	assert.FileExists(t, filepath.Join(out, output.DatabaseFileName))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "discovering schema", DiscoveringSchema.String())
	assert.Equal(t, "extracting rows", ExtractingRows.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "failed", Failed.String())
}

type failingFactory struct{}

func (failingFactory) Open(moType string) (output.Sink, error) {
	return nil, &output.Error{Format: output.FormatCSV, Type: moType, Err: errors.New("read-only file system")}
}

func (failingFactory) Close() error { return nil }
