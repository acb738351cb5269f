package capture

import (
	"io"
	"os"
	"path/filepath"

	"github.com/insolesplug-ops/selimcam/internal/errors"
)

// Sink persists an encoded photo and returns its final path. Save must
// be atomic from a reader's point of view; a partially written photo
// must never be visible under its final name.
type Sink interface {
	Save(name string, r io.Reader) (string, error)
}

// DirSink saves photos into a flat directory via a temp-file rename.
type DirSink struct {
	dir string
}

// NewDirSink creates the directory if needed and returns a sink over it.
func NewDirSink(dir string) (*DirSink, error) {
	if dir == "" {
		return nil, errors.Newf("capture: photo directory is required").
			Component("capture").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("capture").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}
	return &DirSink{dir: dir}, nil
}

// Dir returns the sink directory.
func (s *DirSink) Dir() string { return s.dir }

// Save implements Sink.
func (s *DirSink) Save(name string, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", errors.New(err).
			Component("capture").
			Category(errors.CategoryFileIO).
			Context("dir", s.dir).
			Build()
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", errors.New(err).
			Component("capture").
			Category(errors.CategoryFileIO).
			Context("name", name).
			Build()
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", errors.New(err).
			Component("capture").
			Category(errors.CategoryFileIO).
			Context("name", name).
			Build()
	}

	final := filepath.Join(s.dir, name)
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return "", errors.New(err).
			Component("capture").
			Category(errors.CategoryFileIO).
			Context("name", name).
			Build()
	}
	return final, nil
}
