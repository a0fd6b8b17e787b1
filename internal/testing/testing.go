// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/forro/internal/models"
	"github.com/desertthunder/forro/internal/shared"
)

// SearchCall is one recorded [MockCatalog.SearchTrack] call.
type SearchCall struct {
	Title  string
	Artist string
}

// AddCall is one recorded [MockCatalog.AddToPlaylist] call.
type AddCall struct {
	PlaylistID string
	URIs       []string
}

// MockCatalog is a test double for [services.Catalog].
//
// Tracks and Errors are keyed by [shared.NormalizeTrackKey]. A search with no entry in either map is a miss.
type MockCatalog struct {
	Tracks map[string]*models.CatalogTrack
	Errors map[string]error
	AddErr error
	// OnSearch runs before each search returns, e.g. to cancel a context mid-batch.
	OnSearch func(call SearchCall)
	// OnAdd runs after each successful add.
	OnAdd func(call AddCall)

	mu       sync.Mutex
	searches []SearchCall
	adds     []AddCall
}

// NewMockCatalog creates an empty MockCatalog.
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{Tracks: map[string]*models.CatalogTrack{}, Errors: map[string]error{}}
}

// AddTrack registers a match for title and artist with the given URI.
func (m *MockCatalog) AddTrack(title, artist, uri string) {
	m.Tracks[shared.NormalizeTrackKey(title, artist)] = &models.CatalogTrack{
		ID:     uri,
		Name:   title,
		Artist: artist,
		URI:    uri,
		URL:    "https://open.spotify.com/track/" + uri,
	}
}

// FailTrack makes searches for title and artist return err.
func (m *MockCatalog) FailTrack(title, artist string, err error) {
	m.Errors[shared.NormalizeTrackKey(title, artist)] = err
}

func (m *MockCatalog) SearchTrack(ctx context.Context, title, artist string) (*models.CatalogTrack, error) {
	call := SearchCall{Title: title, Artist: artist}
	m.mu.Lock()
	m.searches = append(m.searches, call)
	m.mu.Unlock()

	if m.OnSearch != nil {
		m.OnSearch(call)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := shared.NormalizeTrackKey(title, artist)
	if err, ok := m.Errors[key]; ok {
		return nil, err
	}
	return m.Tracks[key], nil
}

func (m *MockCatalog) AddToPlaylist(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	m.mu.Lock()
	call := AddCall{PlaylistID: playlistID, URIs: append([]string(nil), uris...)}
	m.adds = append(m.adds, call)
	m.mu.Unlock()

	if m.AddErr != nil {
		return m.AddErr
	}
	if m.OnAdd != nil {
		m.OnAdd(call)
	}
	return nil
}

func (m *MockCatalog) Name() string { return "mock" }

// Searches returns the recorded search calls.
func (m *MockCatalog) Searches() []SearchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SearchCall(nil), m.searches...)
}

// Adds returns the recorded add calls.
func (m *MockCatalog) Adds() []AddCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AddCall(nil), m.adds...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites int, target io.Writer) *LimitedWriter {
	return &LimitedWriter{maxWrites: maxWrites, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

// MustChdir changes into dir and restores the previous directory when the test ends.
func MustChdir(t *testing.T, dir string) {
	t.Helper()
	prev := MustGetwd(t)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
	t.Cleanup(func() { os.Chdir(prev) })
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
