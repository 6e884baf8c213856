package table

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenders.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const sample = "\ufeffTitle,Location,Amount\n" +
	"Road repair,Pune,50 Lakhs\n" +
	"\"Hospital beds, ICU\",Delhi,1.5 Cr\n" +
	"Solar plant,Jaipur\n"

func TestReadWindow(t *testing.T) {
	r, err := NewReader(writeTable(t, sample), ",")
	require.NoError(t, err)

	rows, err := r.ReadWindow(1, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Hospital beds, ICU", rows[0]["Title"])
	assert.Equal(t, "1.5 Cr", rows[0]["Amount"])
	assert.Equal(t, "Solar plant", rows[1]["Title"])
	assert.Equal(t, "", rows[1]["Amount"], "short row pads missing columns")
}

func TestReadWindow_BOMStrippedFromHeader(t *testing.T) {
	r, err := NewReader(writeTable(t, sample), "")
	require.NoError(t, err)

	rows, err := r.ReadWindow(0, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Road repair", rows[0]["Title"])
}

func TestReadWindow_PastEnd(t *testing.T) {
	r, err := NewReader(writeTable(t, sample), ",")
	require.NoError(t, err)

	rows, err := r.ReadWindow(10, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadWindow_InvalidWindow(t *testing.T) {
	r, err := NewReader(writeTable(t, sample), ",")
	require.NoError(t, err)

	_, err = r.ReadWindow(-1, 5)
	assert.Error(t, err)
	_, err = r.ReadWindow(0, 0)
	assert.Error(t, err)
}

func TestReadWindow_MissingFile(t *testing.T) {
	r, err := NewReader(filepath.Join(t.TempDir(), "nope.csv"), ",")
	require.NoError(t, err)

	_, err = r.ReadWindow(0, 1)
	assert.Error(t, err)
}

func TestCount(t *testing.T) {
	r, err := NewReader(writeTable(t, sample), ",")
	require.NoError(t, err)

	n, err := r.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSemicolonDelimiter(t *testing.T) {
	r, err := NewReader(writeTable(t, "Title;Location\nBridge;Goa\n"), ";")
	require.NoError(t, err)

	rows, err := r.ReadWindow(0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Goa", rows[0]["Location"])
}

func TestNewReader_Validation(t *testing.T) {
	_, err := NewReader("", ",")
	assert.Error(t, err)
	_, err = NewReader("x.csv", ";;")
	assert.Error(t, err)
}

func TestEmptyFileHasNoHeader(t *testing.T) {
	r, err := NewReader(writeTable(t, ""), ",")
	require.NoError(t, err)

	_, err = r.Count()
	assert.ErrorContains(t, err, "no header row")
}
