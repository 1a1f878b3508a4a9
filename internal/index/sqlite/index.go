package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/tbeck/coursemirror/internal/fingerprint"
)

// Index stores known fingerprints per course in SQLite. Every insert is
// committed immediately, so a crash loses at most the job that was in flight.
type Index struct {
	db *sql.DB
}

// Open initializes the database at path and creates the fingerprints table if
// it doesn't exist.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	// One connection keeps concurrent workers from tripping over SQLite's
	// file lock; index traffic is far from being a bottleneck.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS fingerprints (
		id INTEGER PRIMARY KEY,
		course_id TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		added_at DATETIME,
		UNIQUE(course_id, fingerprint)
	)`)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create fingerprints table: %w", err)
	}

	return &Index{db: db}, nil
}

func (i *Index) Close() error {
	return i.db.Close()
}

func (i *Index) Contains(ctx context.Context, courseID string, fp fingerprint.Fingerprint) (bool, error) {
	var one int

	err := i.db.QueryRowContext(ctx,
		`SELECT 1 FROM fingerprints WHERE course_id = ? AND fingerprint = ?`,
		courseID, fp.String(),
	).Scan(&one)

	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to query fingerprint: %w", err)
	}

	return true, nil
}

// Insert records a fingerprint for a course. Inserting an already-present
// fingerprint is a no-op.
func (i *Index) Insert(ctx context.Context, courseID string, fp fingerprint.Fingerprint) error {
	_, err := i.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO fingerprints (course_id, fingerprint, added_at) VALUES (?, ?, ?)`,
		courseID, fp.String(), time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fingerprint: %w", err)
	}

	return nil
}

// CourseSize reports how many fingerprints are recorded for a course.
func (i *Index) CourseSize(ctx context.Context, courseID string) (int, error) {
	var n int

	err := i.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fingerprints WHERE course_id = ?`, courseID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count fingerprints: %w", err)
	}

	return n, nil
}
