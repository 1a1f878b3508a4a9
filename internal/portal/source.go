package portal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tbeck/coursemirror/internal/course"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// NewHTTPClient builds the portal HTTP client. Requests carry the bearer
// token when one is configured and are traced via otelhttp.
func NewHTTPClient(token string) *http.Client {
	base := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	if token == "" {
		return base
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})

	return oauth2.NewClient(ctx, tokenSource)
}

// HTTPSource adapts one portal file URL to the course.Source capability using
// HTTP range requests.
type HTTPSource struct {
	client *http.Client
	url    string
}

func NewHTTPSource(client *http.Client, url string) *HTTPSource {
	return &HTTPSource{client: client, url: url}
}

// FetchRange requests [offset, offset+length) via a Range header. Servers
// that ignore the header and answer 200 are tolerated: the offset is skipped
// client-side and the body is capped at length.
func (s *HTTPSource) FetchRange(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build range request: %w", err)
	}

	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("range request failed: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return readCloser{io.LimitReader(resp.Body, length), resp.Body}, nil
	case http.StatusOK:
		if offset > 0 {
			if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
				resp.Body.Close()

				if err == io.EOF {
					return nil, course.ErrRangeUnsatisfiable
				}

				return nil, fmt.Errorf("failed to skip %d bytes: %w", offset, err)
			}

			// A body ending exactly at the offset is still past EOF; read
			// ahead one byte so it reports the same way a 416 would.
			var first [1]byte
			if _, err := io.ReadFull(resp.Body, first[:]); err != nil {
				resp.Body.Close()

				if err == io.EOF {
					return nil, course.ErrRangeUnsatisfiable
				}

				return nil, fmt.Errorf("failed to read past %d bytes: %w", offset, err)
			}

			window := io.MultiReader(bytes.NewReader(first[:]), resp.Body)

			return readCloser{io.LimitReader(window, length), resp.Body}, nil
		}

		return readCloser{io.LimitReader(resp.Body, length), resp.Body}, nil
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()

		return nil, course.ErrRangeUnsatisfiable
	default:
		resp.Body.Close()

		return nil, fmt.Errorf("range request returned HTTP %d", resp.StatusCode)
	}
}

// FetchFull retrieves the whole file.
func (s *HTTPSource) FetchFull(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		return nil, fmt.Errorf("request returned HTTP %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// readCloser caps a response body at the requested window while closing the
// underlying body.
type readCloser struct {
	io.Reader
	io.Closer
}
