package portal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbeck/coursemirror/internal/course"
)

func testContent(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}

	return data
}

func TestFetchRangePartialContent(t *testing.T) {
	data := testContent(4096)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// http.ServeContent honors Range headers.
		http.ServeContent(w, r, "file.bin", time.Now(), bytes.NewReader(data))
	}))
	defer server.Close()

	src := NewHTTPSource(server.Client(), server.URL)

	rc, err := src.FetchRange(context.Background(), 512, 1024)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data[512:1536], got)
}

func TestFetchRangeServerIgnoresRange(t *testing.T) {
	data := testContent(4096)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Plain 200 with the whole body, Range header ignored.
		w.Write(data)
	}))
	defer server.Close()

	src := NewHTTPSource(server.Client(), server.URL)

	rc, err := src.FetchRange(context.Background(), 512, 1024)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data[512:1536], got, "offset must be skipped client-side when the server ignores Range")
}

func TestFetchRangePastEOF(t *testing.T) {
	data := testContent(100)

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server answers 416",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.ServeContent(w, r, "file.bin", time.Now(), bytes.NewReader(data))
			},
		},
		{
			name: "server ignores range on a short body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write(data)
			},
		},
		{
			name: "server ignores range on a body exactly offset bytes long",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write(testContent(512))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			src := NewHTTPSource(server.Client(), server.URL)

			_, err := src.FetchRange(context.Background(), 512, 64)
			assert.ErrorIs(t, err, course.ErrRangeUnsatisfiable)
		})
	}
}

func TestFetchRangeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	src := NewHTTPSource(server.Client(), server.URL)

	_, err := src.FetchRange(context.Background(), 0, 64)
	require.Error(t, err)
	assert.False(t, errors.Is(err, course.ErrRangeUnsatisfiable))
}

func TestFetchFull(t *testing.T) {
	data := testContent(2048)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	src := NewHTTPSource(server.Client(), server.URL)

	rc, err := src.FetchFull(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestNewHTTPClientSendsBearerToken(t *testing.T) {
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient("sekrit")

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.True(t, strings.HasPrefix(gotAuth, "Bearer "), "Authorization = %q", gotAuth)
	assert.Contains(t, gotAuth, "sekrit")
}
