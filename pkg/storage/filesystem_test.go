package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportStoreSaveAndOpen(t *testing.T) {
	store, err := NewExportStore(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save("clearance/roster-abc.csv", []byte("Student,Overall\n"))
	require.NoError(t, err)
	assert.Equal(t, "clearance/roster-abc.csv", name)

	file, err := store.Open(name)
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "Student,Overall\n", string(data))
}

func TestExportStoreRefusesEscapingNames(t *testing.T) {
	store, err := NewExportStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../outside.csv", []byte("x"))
	assert.Error(t, err)
	_, err = store.Save("/etc/passwd", []byte("x"))
	assert.Error(t, err)
	_, err = store.Open("a/../../outside.csv")
	assert.Error(t, err)
}

func TestExportStoreSweepsOldArtifacts(t *testing.T) {
	dir := t.TempDir()
	store, err := NewExportStore(dir)
	require.NoError(t, err)

	_, err = store.Save("old.csv", []byte("stale"))
	require.NoError(t, err)
	_, err = store.Save("fresh.csv", []byte("recent"))
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.csv"), stale, stale))

	removed, err := store.Sweep(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Open("old.csv")
	assert.Error(t, err)
	kept, err := store.Open("fresh.csv")
	require.NoError(t, err)
	kept.Close()
}
