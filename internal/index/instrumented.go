package index

import (
	"context"

	"github.com/tbeck/coursemirror/internal/fingerprint"
	"github.com/tbeck/coursemirror/internal/telemetry"
)

// Instrumented wraps an Index with telemetry.
type Instrumented struct {
	index     Index
	telemetry *telemetry.Telemetry
}

func NewInstrumented(idx Index, tel *telemetry.Telemetry) *Instrumented {
	return &Instrumented{index: idx, telemetry: tel}
}

func (i *Instrumented) Contains(ctx context.Context, courseID string, fp fingerprint.Fingerprint) (bool, error) {
	var result bool

	err := i.telemetry.InstrumentIndexOp(ctx, "contains", func(ctx context.Context) error {
		var err error
		result, err = i.index.Contains(ctx, courseID, fp)

		return err
	})

	return result, err
}

func (i *Instrumented) Insert(ctx context.Context, courseID string, fp fingerprint.Fingerprint) error {
	return i.telemetry.InstrumentIndexOp(ctx, "insert", func(ctx context.Context) error {
		return i.index.Insert(ctx, courseID, fp)
	})
}
