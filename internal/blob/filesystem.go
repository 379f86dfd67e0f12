package blob

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

// FilesystemStorage is a [Storage] backend that lays blobs out as files
// under a root directory, one directory per key prefix.
type FilesystemStorage struct {
	root string
}

// NewFilesystemStorage creates a blob store rooted at dir, creating the
// directory when missing.
func NewFilesystemStorage(dir string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, shared.Internalf("failed to create blob directory %q: %v", dir, err)
	}
	return &FilesystemStorage{root: dir}, nil
}

func (s *FilesystemStorage) path(key string) (string, error) {
	// keys are "<prefix>/<suffix>"; reject anything that could escape root
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", shared.Invalidf("blob key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Write implements [Storage].
func (s *FilesystemStorage) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	path, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, shared.Internalf("failed to create blob directory: %v", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, shared.Internalf("failed to create blob file: %v", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, shared.Internalf("failed to write blob %q: %v", key, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, shared.Internalf("failed to finalize blob %q: %v", key, err)
	}
	return n, nil
}

// Read implements [Storage].
func (s *FilesystemStorage) Read(ctx context.Context, key string, rng Range) (io.ReadCloser, error) {
	if rng.Offset < 0 {
		return nil, shared.Invalidf("negative blob range offset %d", rng.Offset)
	}
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, shared.NotFoundf("blob %q", key)
	}
	if err != nil {
		return nil, shared.Internalf("failed to open blob %q: %v", key, err)
	}

	if rng.Offset > 0 {
		if _, err := f.Seek(rng.Offset, io.SeekStart); err != nil {
			f.Close()
			return nil, shared.Internalf("failed to seek blob %q: %v", key, err)
		}
	}
	if rng.Length > 0 {
		return struct {
			io.Reader
			io.Closer
		}{io.LimitReader(f, rng.Length), f}, nil
	}
	return f, nil
}

// Delete implements [Storage].
func (s *FilesystemStorage) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return shared.Internalf("failed to delete blob %q: %v", key, err)
	}
	return nil
}
