// Package testutil provides HTTP record/replay helpers for tests that
// exercise the game API over the wire.
package testutil

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// NewRecorder creates a VCR recorder backed by a cassette under
// testdata/fixtures. Set VCR_MODE=record against a live server to
// capture new cassettes; the default mode replays.
func NewRecorder(t *testing.T, cassetteName string) (*recorder.Recorder, func()) {
	t.Helper()

	mode := recorder.ModeReplaying
	if os.Getenv("VCR_MODE") == "record" {
		mode = recorder.ModeRecording
	}

	cassettePath := filepath.Join("testdata", "fixtures", cassetteName)

	r, err := recorder.NewAsMode(cassettePath, mode, nil)
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}

	// Request ids are fresh per request, so match on method and URL only.
	r.SetMatcher(func(req *http.Request, i cassette.Request) bool {
		return req.Method == i.Method && req.URL.String() == i.URL
	})

	cleanup := func() {
		if err := r.Stop(); err != nil {
			t.Errorf("failed to stop recorder: %v", err)
		}
	}
	return r, cleanup
}

// HTTPClient returns an HTTP client that routes through the recorder.
func HTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{Transport: r}
}

// HasCassette reports whether a cassette has been recorded. Tests that
// require one should skip when it is absent.
func HasCassette(cassetteName string) bool {
	_, err := os.Stat(filepath.Join("testdata", "fixtures", cassetteName+".yaml"))
	return err == nil
}
