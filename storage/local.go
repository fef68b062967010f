package storage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-sif/atlasgen/errors"
	"github.com/spf13/afero"
)

type aferoStore struct {
	fs   afero.Fs
	root string
}

// NewLocal produces a Store rooted at a directory on the local file system
func NewLocal(root string) Store {
	return NewAfero(afero.NewOsFs(), root)
}

// NewAfero produces a Store rooted at a directory of any afero file system
func NewAfero(fs afero.Fs, root string) Store {
	return &aferoStore{fs: fs, root: filepath.Clean(root)}
}

// NewAferoOpener produces an Opener which resolves every location against the same afero
// file system, ignoring file:// schemes
func NewAferoOpener(fs afero.Fs) Opener {
	return func(ctx context.Context, location string) (Store, error) {
		return NewAfero(fs, strings.TrimPrefix(location, fileScheme)), nil
	}
}

func (s *aferoStore) resolve(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(p))
}

func (s *aferoStore) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	resolved := s.resolve(p)
	if err := s.fs.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return nil, err
	}
	return s.fs.Create(resolved)
}

func (s *aferoStore) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.resolve(p))
	if os.IsNotExist(err) {
		return nil, errors.MissingDatasetError{Path: path.Join(filepath.ToSlash(s.root), p)}
	}
	return f, err
}

func (s *aferoStore) Exists(ctx context.Context, p string) (bool, error) {
	return afero.Exists(s.fs, s.resolve(p))
}

func (s *aferoStore) List(ctx context.Context, prefix string) ([]string, error) {
	start := s.resolve(prefix)
	if exists, err := afero.Exists(s.fs, start); err != nil || !exists {
		return nil, err
	}
	var result []string
	err := afero.Walk(s.fs, start, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		result = append(result, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(result)
	return result, err
}

func (s *aferoStore) RemoveAll(ctx context.Context, prefix string) error {
	return s.fs.RemoveAll(s.resolve(prefix))
}

func (s *aferoStore) Close() error {
	return nil
}
