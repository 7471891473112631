package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const copyChunkSize = 1 << 20

// FileStore persists uploaded files under a flat namespace.
type FileStore interface {
	// Save writes r under name and returns the number of bytes written.
	Save(ctx context.Context, name, contentType string, r io.Reader) (int64, error)
	// Size reports the stored size of name.
	Size(ctx context.Context, name string) (int64, error)
	Delete(ctx context.Context, name string) error
	// URL is the public address of name.
	URL(name string) string
}

// LocalStore keeps files in a directory served under a URL prefix.
type LocalStore struct {
	dir       string
	urlPrefix string
}

func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalStore{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *LocalStore) Save(ctx context.Context, name, _ string, r io.Reader) (int64, error) {
	path, err := s.path(name)
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	written, copyErr := io.CopyBuffer(f, contextReader{ctx, r}, make([]byte, copyChunkSize))
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(path)
		return written, copyErr
	}
	return written, closeErr
}

func (s *LocalStore) Size(_ context.Context, name string) (int64, error) {
	path, err := s.path(name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) URL(name string) string {
	return s.urlPrefix + "/" + name
}

// contextReader stops a copy once the request is cancelled
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
