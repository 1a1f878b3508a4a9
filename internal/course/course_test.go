package course

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRemoteFile(t *testing.T) {
	c := Course{ID: "40001", Name: "Algorithms"}

	tests := []struct {
		name     string
		fileName string
		ext      string
		wantExt  string
	}{
		{
			name:     "extension derived from name",
			fileName: "Lecture-01.PDF",
			ext:      "",
			wantExt:  ".pdf",
		},
		{
			name:     "explicit extension wins",
			fileName: "download",
			ext:      ".ZIP",
			wantExt:  ".zip",
		},
		{
			name:     "no extension at all",
			fileName: "README",
			ext:      "",
			wantExt:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewRemoteFile(c, tt.fileName, tt.ext, 0, nil)
			assert.Equal(t, tt.wantExt, f.Ext)
			assert.Equal(t, c, f.Course)
		})
	}
}

func TestRemoteFileRelPath(t *testing.T) {
	c := Course{ID: "40001", Name: "Algorithms"}

	f := NewRemoteFile(c, "notes.pdf", "", 0, nil)
	assert.Equal(t, filepath.Join("Algorithms", "notes.pdf"), f.RelPath())

	// Display names must not escape the course directory.
	f = NewRemoteFile(c, "../../etc/passwd", "", 0, nil)
	assert.Equal(t, filepath.Join("Algorithms", "passwd"), f.RelPath())
}

func TestFileSourceFetchRange(t *testing.T) {
	data := []byte("0123456789abcdef")
	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	src := NewFileSource(path)

	rc, err := src.FetchRange(context.Background(), 4, 8)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("456789ab"), got)
}

func TestFileSourceRangePastEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path, []byte("tiny"), 0o644))

	src := NewFileSource(path)

	_, err := src.FetchRange(context.Background(), 100, 8)
	assert.ErrorIs(t, err, ErrRangeUnsatisfiable)
}

func TestFileSourceShortRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	src := NewFileSource(path)

	rc, err := src.FetchRange(context.Background(), 5, 100)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("56789"), got, "a window past EOF reads what is available")
}

func TestFileSourceFetchFull(t *testing.T) {
	data := []byte("full content")
	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	src := NewFileSource(path)

	rc, err := src.FetchFull(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
