package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tbeck/coursemirror/internal/course"
	"github.com/tbeck/coursemirror/internal/logctx"
)

// Manifest is the course listing the portal (or a tool in front of it)
// serves. How the listing was discovered is not this package's concern.
type Manifest struct {
	Courses []ManifestCourse `json:"courses"`
}

type ManifestCourse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Files []ManifestFile `json:"files"`
}

type ManifestFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Enumerator turns a portal manifest into a stream of download jobs.
type Enumerator struct {
	client      *http.Client
	manifestURL string
}

func NewEnumerator(client *http.Client, manifestURL string) *Enumerator {
	return &Enumerator{client: client, manifestURL: manifestURL}
}

// FetchManifest retrieves and decodes the course manifest.
func (e *Enumerator) FetchManifest(ctx context.Context) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build manifest request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("manifest request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest request returned HTTP %d", resp.StatusCode)
	}

	var m Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	return &m, nil
}

// Stream fetches the manifest and feeds jobs into a bounded channel, so
// memory use does not scale with the total remote file count. The channel is
// closed when every job has been handed off or the context is cancelled.
func (e *Enumerator) Stream(ctx context.Context, queueSize int) (<-chan *course.RemoteFile, error) {
	m, err := e.FetchManifest(ctx)
	if err != nil {
		return nil, err
	}

	jobs := make(chan *course.RemoteFile, queueSize)

	go func() {
		defer close(jobs)

		logger := logctx.LoggerFromContext(ctx)

		for _, mc := range m.Courses {
			c := course.Course{ID: mc.ID, Name: mc.Name}

			logger.Info("enumerating course", "course_id", c.ID, "course_name", c.Name, "file_count", len(mc.Files))

			for _, mf := range mc.Files {
				src := NewHTTPSource(e.client, mf.URL)
				job := course.NewRemoteFile(c, mf.Name, "", mf.Size, src)

				select {
				case <-ctx.Done():
					return
				case jobs <- job:
				}
			}
		}
	}()

	return jobs, nil
}
