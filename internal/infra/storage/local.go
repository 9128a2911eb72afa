// Package storage keeps uploaded document files on the local filesystem
// for the postgres and memory backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local implements port.FileStorage under a root directory. Files are
// served back under baseURL.
type Local struct {
	root    string
	baseURL string
}

// NewLocal creates the root directory when missing.
func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory files are written to.
func (l *Local) Root() string { return l.root }

func (l *Local) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", fmt.Errorf("empty storage path")
	}
	return filepath.Join(l.root, clean), nil
}

// Upload writes body to path, replacing any previous file.
func (l *Local) Upload(ctx context.Context, path, _ string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := l.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return l.baseURL + "/" + strings.TrimLeft(filepath.ToSlash(filepath.Clean("/"+path)), "/"), nil
}

// Remove deletes the file at path. A missing file is not an error.
func (l *Local) Remove(_ context.Context, path string) error {
	target, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
