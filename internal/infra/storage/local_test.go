package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_UploadAndRemove(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, "/files/")
	require.NoError(t, err)

	url, err := l.Upload(context.Background(), "lead-1/passport.pdf", "application/pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "/files/lead-1/passport.pdf", url)

	raw, err := os.ReadFile(filepath.Join(dir, "lead-1", "passport.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(raw))

	require.NoError(t, l.Remove(context.Background(), "lead-1/passport.pdf"))
	assert.NoFileExists(t, filepath.Join(dir, "lead-1", "passport.pdf"))
	assert.NoError(t, l.Remove(context.Background(), "lead-1/passport.pdf"), "second remove is a no-op")
}

func TestLocal_PathStaysUnderRoot(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(filepath.Join(dir, "root"), "/files")
	require.NoError(t, err)

	_, err = l.Upload(context.Background(), "../../escape.txt", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "root", "escape.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}
