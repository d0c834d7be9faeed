package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes uploads below a directory on disk. The router serves
// that directory at /uploads, so baseURL is the public address of the API.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(root, Prefix), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory holding objects under Prefix.
func (s *LocalStore) Dir() string {
	return filepath.Join(s.root, Prefix)
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("local put %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return "", fmt.Errorf("local put %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("local put %s: %w", key, err)
	}
	return s.baseURL + "/" + Prefix + url.PathEscape(strings.TrimPrefix(key, Prefix)), nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("local delete %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) path(key string) (string, error) {
	name := strings.TrimPrefix(key, Prefix)
	if name == "" || name != filepath.Base(name) || name == ".." {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.Dir(), name), nil
}
