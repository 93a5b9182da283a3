package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/postphotos/purrfectcopy/internal/runstore"
)

const DefaultFileName = ".pcopy-main-backup.yml"

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DefaultFileName
	}
	return filepath.Join(home, DefaultFileName)
}

// Store reads and writes the settings file. There is no locking: the last
// writer wins.
type Store struct {
	fs   afero.Fs
	path string
}

func NewStore(fsys afero.Fs, path string) *Store {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if path == "" {
		path = DefaultPath()
	}
	return &Store{fs: fsys, path: path}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Load returns an empty document when the file does not exist yet.
func (s *Store) Load() (*Document, error) {
	data, err := runstore.ReadBytes(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewDocument(), nil
		}
		return nil, err
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return doc, nil
}

func (s *Store) Save(doc *Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	return runstore.WriteBytes(s.fs, s.path, data)
}

// Update loads the document, applies fn and saves the result.
func (s *Store) Update(fn func(*Document) error) error {
	doc, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.Save(doc)
}

// Backup copies the current file to <path>.bak. It reports false when there
// was nothing to back up.
func (s *Store) Backup() (string, bool, error) {
	if !runstore.Exists(s.fs, s.path) {
		return "", false, nil
	}
	bak := s.path + ".bak"
	if err := runstore.CopyFile(s.fs, s.path, bak); err != nil {
		return "", false, fmt.Errorf("back up settings: %w", err)
	}
	return bak, true, nil
}
