package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "https://storage.googleapis.com/docs/exports/BBGN_DH-01.pdf", ObjectURL("docs", "exports/BBGN_DH-01.pdf"))
	assert.Equal(t, "https://storage.googleapis.com/docs/a%20b.pdf", ObjectURL("docs", "a b.pdf"))
}

func TestDirUpload(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	d := Dir{Root: root}

	path, err := d.Upload(context.Background(), "../YCVT_1.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "YCVT_1.pdf"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(got))
}

func TestDirUploadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Dir{Root: t.TempDir()}.Upload(ctx, "x.pdf", "application/pdf", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewGCSRequiresBucket(t *testing.T) {
	_, err := NewGCS(context.Background(), " ", "", "")
	assert.Error(t, err)
}
