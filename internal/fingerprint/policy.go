package fingerprint

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Window selects which byte range of a file participates in the fingerprint.
// Skip bytes are ignored from the start of the file, Read bytes after that are
// hashed. Formats that regenerate their header on every export (zip being the
// notorious one) get a non-zero skip so byte-identical payloads hash equal.
type Window struct {
	Skip uint64 `yaml:"skip"`
	Read uint64 `yaml:"read"`
}

// Policy maps a lowercased file extension (leading dot included) to its
// fingerprint window. Unknown extensions resolve to the default window, never
// to an error. The table is read-only after load.
//
// Changing the policy invalidates every fingerprint computed under the old
// one; an index built with a different policy must be discarded.
type Policy struct {
	windows map[string]Window
	def     Window
}

// Tuning table, not correctness: large windows for formats with big variable
// headers, small ones where the first bytes already discriminate.
var defaultWindows = map[string]Window{
	".pdf": {Skip: 128, Read: 1024},
	".tex": {Skip: 0, Read: 1024},
	".zip": {Skip: 512, Read: 512},
	".mp4": {Skip: 512, Read: 1024},
}

const defaultWindowRead = 64

// DefaultPolicy returns the built-in tuning table.
func DefaultPolicy() *Policy {
	windows := make(map[string]Window, len(defaultWindows))
	for ext, w := range defaultWindows {
		windows[ext] = w
	}

	return &Policy{
		windows: windows,
		def:     Window{Skip: 0, Read: defaultWindowRead},
	}
}

type policyFile struct {
	Extensions map[string]Window `yaml:"extensions"`
	Default    *Window           `yaml:"default"`
}

// LoadPolicy reads a YAML policy file. Entries extend or override the built-in
// table; a "default" entry replaces the fallback window.
func LoadPolicy(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	p := DefaultPolicy()

	for ext, w := range pf.Extensions {
		if w.Read == 0 {
			return nil, fmt.Errorf("policy entry %q has a zero read window", ext)
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		p.windows[strings.ToLower(ext)] = w
	}

	if pf.Default != nil {
		if pf.Default.Read == 0 {
			return nil, fmt.Errorf("default policy entry has a zero read window")
		}

		p.def = *pf.Default
	}

	return p, nil
}

// Lookup resolves the window for an extension, falling back to the default
// entry when the extension is unknown.
func (p *Policy) Lookup(ext string) Window {
	if w, ok := p.windows[strings.ToLower(ext)]; ok {
		return w
	}

	return p.def
}
