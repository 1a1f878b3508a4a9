package course

import (
	"context"
	"fmt"
	"io"
	"os"
)

// FileSource adapts a local file to the Source capability. It backs index
// rebuilds from an existing download tree.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) FetchRange(_ context.Context, offset, length int64) (io.ReadCloser, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.path, err)
	}

	st, err := fh.Stat()
	if err != nil {
		fh.Close()

		return nil, fmt.Errorf("failed to stat %s: %w", f.path, err)
	}

	if offset > 0 && offset >= st.Size() {
		fh.Close()

		return nil, ErrRangeUnsatisfiable
	}

	return &sectionCloser{
		Reader: io.NewSectionReader(fh, offset, length),
		file:   fh,
	}, nil
}

func (f *FileSource) FetchFull(_ context.Context) (io.ReadCloser, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.path, err)
	}

	return fh, nil
}

type sectionCloser struct {
	io.Reader
	file *os.File
}

func (s *sectionCloser) Close() error {
	return s.file.Close()
}
