package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/tbeck/coursemirror/internal/course"
)

// Size is the length of a fingerprint in bytes.
const Size = sha256.Size

// Fingerprint is the identity of a remote file, derived from a bounded byte
// window. Equality is the only meaningful operation; it is a dedup heuristic,
// not a security hash.
type Fingerprint [Size]byte

func (fp Fingerprint) String() string {
	return hex.EncodeToString(fp[:])
}

// ParseFingerprint decodes the hex form produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint

	raw, err := hex.DecodeString(s)
	if err != nil {
		return fp, fmt.Errorf("failed to decode fingerprint: %w", err)
	}

	if len(raw) != Size {
		return fp, fmt.Errorf("fingerprint has %d bytes, want %d", len(raw), Size)
	}

	copy(fp[:], raw)

	return fp, nil
}

// FetchError reports that the fingerprint window could not be retrieved from
// the source.
type FetchError struct {
	Name string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch fingerprint window for %s: %v", e.Name, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Engine computes fingerprints according to a fixed policy. Safe for
// concurrent use; it holds no mutable state.
type Engine struct {
	policy *Policy
}

func NewEngine(policy *Policy) *Engine {
	return &Engine{policy: policy}
}

// Fingerprint fetches the policy window for ext from src and hashes it.
//
// A resource shorter than the configured skip is fingerprinted from offset 0
// instead; a resource shorter than skip+read is hashed up to its end. Only a
// transport failure produces an error, never a short file.
func (e *Engine) Fingerprint(ctx context.Context, src course.Source, name, ext string) (Fingerprint, error) {
	w := e.policy.Lookup(ext)

	window, err := e.fetchWindow(ctx, src, w)
	if err != nil {
		return Fingerprint{}, &FetchError{Name: name, Err: err}
	}

	return sha256.Sum256(window), nil
}

func (e *Engine) fetchWindow(ctx context.Context, src course.Source, w Window) ([]byte, error) {
	rc, err := src.FetchRange(ctx, int64(w.Skip), int64(w.Read))
	if errors.Is(err, course.ErrRangeUnsatisfiable) && w.Skip > 0 {
		// File shorter than the skip offset. Hash whatever it has.
		rc, err = src.FetchRange(ctx, 0, int64(w.Read))
	}

	if err != nil {
		return nil, err
	}
	defer rc.Close()

	// A short window (file ends inside the read range) is expected.
	window, err := io.ReadAll(io.LimitReader(rc, int64(w.Read)))
	if err != nil {
		return nil, fmt.Errorf("failed to read fingerprint window: %w", err)
	}

	return window, nil
}
