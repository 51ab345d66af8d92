package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/matzehuels/parcelgrid/pkg/errors"
	"github.com/matzehuels/parcelgrid/pkg/parcel"
)

// FileStore keeps the document in a local JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store for the file at path. The file is not
// touched until Load or Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file path.
func (s *FileStore) Path() string { return s.path }

// Location returns the file path.
func (s *FileStore) Location() string { return s.path }

// Load reads the file.
func (s *FileStore) Load(ctx context.Context) (parcel.Document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeFileNotFound, "document not found: %s", s.path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "read %s", s.path)
	}
	return parcel.Decode(data)
}

// Save writes the document to a temporary file next to the target and
// renames it into place, so readers never observe a partial document.
func (s *FileStore) Save(ctx context.Context, doc parcel.Document) error {
	data, err := parcel.Encode(doc)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode document")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "create temp file")
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeStore, err, "write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "close %s", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "chmod %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "replace %s", s.path)
	}
	return nil
}

// Close does nothing for file stores.
func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
