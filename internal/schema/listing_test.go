package schema

import (
	"bytes"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListing(t *testing.T) {
	input := `# exported parameters
Cell:freq,power

NE: NAME , VERSION,
Cell:power,tilt
`
	reg, err := ParseListing(strings.NewReader(input))
	require.NoError(t, err)

	assert.True(t, reg.Restricted())
	assert.True(t, reg.Frozen())
	assert.Equal(t, []string{"Cell", "NE"}, reg.Types())
	assert.Equal(t, []string{"freq", "power", "tilt"}, reg.Columns("Cell"))
	assert.Equal(t, []string{"NAME", "VERSION"}, reg.Columns("NE"))
}

func TestParseListing_TypeWithoutParameters(t *testing.T) {
	reg, err := ParseListing(strings.NewReader("Site:\n"))
	require.NoError(t, err)
	assert.True(t, reg.Has("Site"))
	assert.Empty(t, reg.Columns("Site"))
}

func TestParseListing_Malformed(t *testing.T) {
	tests := []string{
		"Cell freq,power\n",
		":freq\n",
	}
	for _, input := range tests {
		_, err := ParseListing(strings.NewReader(input))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 1")
	}
}

func TestWriteListing_RoundTrip(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add("CELL", "A", "B"))
	require.NoError(t, reg.Add("NE", "name"))

	var buf bytes.Buffer
	require.NoError(t, reg.WriteListing(&buf))
	assert.Equal(t, "CELL:A,B\nNE:name\n", buf.String())

	back, err := ParseListing(&buf)
	require.NoError(t, err)
	assert.Equal(t, reg.Types(), back.Types())
	assert.Equal(t, reg.Columns("CELL"), back.Columns("CELL"))
}

func TestSaveAndLoadListing(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add("CELL", "CELLID", "FREQ"))
	require.NoError(t, reg.Add("NE", "name"))

	for _, name := range []string{"params.txt", "params.xlsx"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, reg.SaveListing(path))

			loaded, err := LoadListing(path)
			require.NoError(t, err)
			assert.Equal(t, ModeListing, loaded.Mode())
			assert.Equal(t, []string{"CELL", "NE"}, loaded.Types())
			assert.Equal(t, []string{"CELLID", "FREQ"}, loaded.Columns("CELL"))
		})
	}
}

func TestLoadListing_Missing(t *testing.T) {
	_, err := LoadListing(filepath.Join(t.TempDir(), "none.txt"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
