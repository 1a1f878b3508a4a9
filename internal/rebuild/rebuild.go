// Package rebuild seeds the fingerprint index from files already present in
// the download directory, so a fresh index doesn't re-download an existing
// tree.
package rebuild

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tbeck/coursemirror/internal/course"
	"github.com/tbeck/coursemirror/internal/fingerprint"
	"github.com/tbeck/coursemirror/internal/index"
	"github.com/tbeck/coursemirror/internal/logctx"
)

// Rebuild fingerprints every file under downloadDir/<course name> for the
// given courses and inserts the results into the index. Unreadable files are
// logged and skipped.
func Rebuild(ctx context.Context, courses []course.Course, downloadDir string, engine *fingerprint.Engine, idx index.Index) (int, error) {
	logger := logctx.LoggerFromContext(ctx)

	var seeded int

	for _, c := range courses {
		courseDir := filepath.Join(downloadDir, c.Name)

		if _, err := os.Stat(courseDir); os.IsNotExist(err) {
			continue
		}

		err := filepath.WalkDir(courseDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
				return nil
			}

			src := course.NewFileSource(path)

			fp, err := engine.Fingerprint(ctx, src, d.Name(), filepath.Ext(d.Name()))
			if err != nil {
				logger.Warn("could not fingerprint local file, ignoring it", "path", path, "err", err)

				return nil
			}

			if err := idx.Insert(ctx, c.ID, fp); err != nil {
				return fmt.Errorf("failed to record fingerprint for %s: %w", path, err)
			}

			seeded++

			return nil
		})
		if err != nil {
			return seeded, fmt.Errorf("failed to walk %s: %w", courseDir, err)
		}
	}

	return seeded, nil
}
