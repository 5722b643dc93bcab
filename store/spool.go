package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Spool keeps request bodies on local disk until a flow is done with them.
type Spool struct {
	basePath string
}

func NewSpool(basePath string) (*Spool, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &Spool{basePath: basePath}, nil
}

// SpooledFile is a spooled body. It satisfies models.FileSource.
type SpooledFile struct {
	ID   string
	Path string
	Size int64
}

func (f *SpooledFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// OpenSeeker is Open for callers that serve ranges.
func (f *SpooledFile) OpenSeeker() (io.ReadSeekCloser, error) {
	return os.Open(f.Path)
}

func (f *SpooledFile) Release() error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove spooled file: %w", err)
	}
	return nil
}

func (s *Spool) Save(data io.Reader) (*SpooledFile, error) {
	id := uuid.NewString()
	tmpPath := filepath.Join(s.basePath, "temp-"+id)
	defer os.Remove(tmpPath)

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 1*1024*1024) // 1MB
	size, err := io.CopyBuffer(f, data, buf)
	f.Close()
	if err != nil {
		return nil, err
	}

	finalPath := filepath.Join(s.basePath, id)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, err
	}

	return &SpooledFile{ID: id, Path: finalPath, Size: size}, nil
}
