package index

import (
	"context"
	"sync"

	"github.com/tbeck/coursemirror/internal/fingerprint"
)

// Index is the per-course set of fingerprints whose content is confirmed on
// disk. Implementations must be safe for concurrent use by multiple workers
// and Insert must be idempotent.
//
// A fingerprint must only be inserted after the corresponding download is
// durably complete; the index never records intent.
type Index interface {
	Contains(ctx context.Context, courseID string, fp fingerprint.Fingerprint) (bool, error)
	Insert(ctx context.Context, courseID string, fp fingerprint.Fingerprint) error
}

// Memory is an in-process Index with no persistence. It backs tests and runs
// that explicitly opt out of a database.
type Memory struct {
	mu      sync.RWMutex
	courses map[string]map[fingerprint.Fingerprint]struct{}
}

func NewMemory() *Memory {
	return &Memory{courses: make(map[string]map[fingerprint.Fingerprint]struct{})}
}

func (m *Memory) Contains(_ context.Context, courseID string, fp fingerprint.Fingerprint) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.courses[courseID][fp]

	return ok, nil
}

func (m *Memory) Insert(_ context.Context, courseID string, fp fingerprint.Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fps, ok := m.courses[courseID]
	if !ok {
		fps = make(map[fingerprint.Fingerprint]struct{})
		m.courses[courseID] = fps
	}

	fps[fp] = struct{}{}

	return nil
}

// Len reports the number of fingerprints recorded for a course.
func (m *Memory) Len(courseID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.courses[courseID])
}
