package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskBlobsLifecycle(t *testing.T) {
	dir := t.TempDir()
	d, err := newDiskBlobs(dir, "/storage/")
	require.NoError(t, err)
	ctx := context.Background()

	key := "cards/3/report.pdf"
	require.NoError(t, d.Put(ctx, key, strings.NewReader("%PDF"), 4, "application/pdf"))
	assert.FileExists(t, filepath.Join(dir, "cards", "3", "report.pdf"))
	assert.Equal(t, "/storage/cards/3/report.pdf", d.URL(key))

	rc, err := d.Open(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body))

	require.NoError(t, d.Delete(ctx, key))
	_, err = d.Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, d.Delete(ctx, key), "deleting twice is fine")
}

func TestDiskBlobsStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "blobs")
	d, err := newDiskBlobs(dir, "/storage")
	require.NoError(t, err)

	require.NoError(t, d.Put(context.Background(), "../../escape.txt", strings.NewReader("x"), 1, "text/plain"))
	assert.FileExists(t, filepath.Join(dir, "escape.txt"))
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewBlobKey(t *testing.T) {
	key := newBlobKey(12, "Quarterly Report.PDF")
	assert.Regexp(t, regexp.MustCompile(`^cards/12/[0-9a-f-]{36}\.pdf$`), key)
	assert.NotEqual(t, key, newBlobKey(12, "Quarterly Report.PDF"))
}

func TestNewBlobStoreUnknownDriver(t *testing.T) {
	_, err := newBlobStore(context.Background(), StorageConfig{Driver: "ftp"})
	assert.ErrorContains(t, err, "unknown storage driver")
}
