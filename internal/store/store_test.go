package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type record struct {
	Value int `json:"value"`
}

func TestOpenSingletonPerPath(t *testing.T) {
	t.Cleanup(CloseAll)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.db")

	s1, err := Open(path)
	require.NoError(t, err)
	s2, err := Open(path)
	require.NoError(t, err)
	require.Same(t, s1, s2)

	// a differently-spelled but equivalent path still resolves to the
	// same singleton once made absolute.
	s3, err := Open(dir + string(filepath.Separator) + "." + string(filepath.Separator) + filepath.Base(path))
	require.NoError(t, err)
	require.Same(t, s1, s3)
}

func TestTablePutGetDeleteScan(t *testing.T) {
	t.Cleanup(CloseAll)
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "b.db"))
	require.NoError(t, err)

	tbl, err := NewTable[record](s, "records")
	require.NoError(t, err)

	require.NoError(t, tbl.Put("device:1:temp", record{Value: 1}))
	require.NoError(t, tbl.Put("device:1:humidity", record{Value: 2}))
	require.NoError(t, tbl.Put("device:2:temp", record{Value: 3}))

	got, ok, err := tbl.Get("device:1:temp")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, got.Value)

	_, ok, err = tbl.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)

	scan, err := tbl.ScanPrefix("device:1:")
	require.NoError(t, err)
	require.Len(t, scan, 2)

	require.NoError(t, tbl.Delete("device:1:temp"))
	_, ok, err = tbl.Get("device:1:temp")
	require.NoError(t, err)
	require.False(t, ok)

	all, err := tbl.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestScanRangeOrdering(t *testing.T) {
	t.Cleanup(CloseAll)
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "c.db"))
	require.NoError(t, err)

	tbl, err := NewTable[record](s, "ts")
	require.NoError(t, err)
	keys := []string{"2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z", "2024-01-03T00:00:00Z"}
	for i, k := range keys {
		require.NoError(t, tbl.Put(k, record{Value: i}))
	}

	got, err := tbl.ScanRange("2024-01-01T00:00:00Z", "2024-01-03T00:00:00Z")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 0, got[0].Value)
	require.Equal(t, 1, got[1].Value)
}

func TestMain(m *testing.M) {
	code := m.Run()
	CloseAll()
	os.Exit(code)
}
