package fingerprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyLookup(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name string
		ext  string
		want Window
	}{
		{
			name: "known extension",
			ext:  ".pdf",
			want: Window{Skip: 128, Read: 1024},
		},
		{
			name: "uppercase extension",
			ext:  ".PDF",
			want: Window{Skip: 128, Read: 1024},
		},
		{
			name: "zip skips its variable header",
			ext:  ".zip",
			want: Window{Skip: 512, Read: 512},
		},
		{
			name: "unknown extension falls back to default",
			ext:  ".docx",
			want: Window{Skip: 0, Read: 64},
		},
		{
			name: "empty extension falls back to default",
			ext:  "",
			want: Window{Skip: 0, Read: 64},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Lookup(tt.ext); got != tt.want {
				t.Errorf("Lookup(%q) = %+v, want %+v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `
extensions:
  ".pdf":
    skip: 256
    read: 2048
  mkv:
    skip: 1024
    read: 1024
default:
  skip: 0
  read: 128
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := LoadPolicy(path)
	require.NoError(t, err)

	assert.Equal(t, Window{Skip: 256, Read: 2048}, p.Lookup(".pdf"), "file entry overrides the built-in table")
	assert.Equal(t, Window{Skip: 1024, Read: 1024}, p.Lookup(".mkv"), "missing leading dot is tolerated")
	assert.Equal(t, Window{Skip: 512, Read: 512}, p.Lookup(".zip"), "untouched built-in entries survive")
	assert.Equal(t, Window{Skip: 0, Read: 128}, p.Lookup(".unknown"), "default entry is replaced")
}

func TestLoadPolicyRejectsZeroReadWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extensions:\n  \".pdf\":\n    skip: 10\n"), 0o644))

	_, err := LoadPolicy(path)
	assert.Error(t, err)
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
