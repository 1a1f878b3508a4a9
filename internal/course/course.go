package course

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrRangeUnsatisfiable is returned by Source.FetchRange when the requested
// offset lies past the end of the remote resource.
var ErrRangeUnsatisfiable = errors.New("requested range not satisfiable")

// Source is the capability a remote file must offer: partial reads for
// fingerprinting and a full read for the actual download. HTTP range requests
// are the expected implementation, but nothing here assumes HTTP.
type Source interface {
	FetchRange(ctx context.Context, offset, length int64) (io.ReadCloser, error)
	FetchFull(ctx context.Context) (io.ReadCloser, error)
}

// Course identifies one course on the portal. Each course owns its own
// fingerprint index namespace.
type Course struct {
	ID   string
	Name string
}

// RemoteFile describes one candidate file for download. It is immutable once
// created and is processed exactly once by exactly one worker.
type RemoteFile struct {
	Course Course
	Name   string
	Ext    string
	Size   int64 // advisory, may be 0 when the portal doesn't report it
	Source Source
}

// NewRemoteFile builds a descriptor, deriving the extension from the display
// name when ext is empty.
func NewRemoteFile(c Course, name, ext string, size int64, src Source) *RemoteFile {
	if ext == "" {
		ext = filepath.Ext(name)
	}

	return &RemoteFile{
		Course: c,
		Name:   name,
		Ext:    strings.ToLower(ext),
		Size:   size,
		Source: src,
	}
}

// RelPath is the path of the file relative to the download root.
func (f *RemoteFile) RelPath() string {
	return filepath.Join(f.Course.Name, filepath.Base(f.Name))
}
