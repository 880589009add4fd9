package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nightwell-games/lantern/internal/domain"
)

// recorder collects handler invocations for assertions.
type recorder struct {
	mu        sync.Mutex
	fragments []string
	results   []domain.ActionResult
	errs      []*domain.ClientError
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnFragment: func(text string) {
			r.mu.Lock()
			r.fragments = append(r.fragments, text)
			r.mu.Unlock()
		},
		OnSettled: func(result domain.ActionResult) {
			r.mu.Lock()
			r.results = append(r.results, result)
			r.mu.Unlock()
		},
		OnError: func(err *domain.ClientError) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() ([]string, []domain.ActionResult, []*domain.ClientError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fragments...),
		append([]domain.ActionResult(nil), r.results...),
		append([]*domain.ClientError(nil), r.errs...)
}

func streamServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("expected event-stream accept header, got %q", r.Header.Get("Accept"))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}))
}

func awaitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish in time")
	}
}

func TestSessionStreamsFragmentsThenSettles(t *testing.T) {
	ts := streamServer(t,
		"event: narration_chunk\ndata: {\"chunk\":\"The door \"}\n\n",
		"event: narration_chunk\ndata: {\"chunk\":\"creaks.\"}\n\n",
		"event: complete\ndata: {\"session_id\":\"s1\",\"turn_count\":2,\"phase\":\"active\",\"outcome\":\"ok\",\"hints_unlocked\":0,\"narration\":\"The door creaks.\"}\n\n",
	)
	defer ts.Close()

	rec := &recorder{}
	s, err := Open(context.Background(), ts.URL, ActionRequest{SessionID: "s1", Action: "open door"}, rec.handlers())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	awaitDone(t, s)

	fragments, results, errs := rec.snapshot()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(fragments) != 2 || fragments[0] != "The door " || fragments[1] != "creaks." {
		t.Fatalf("unexpected fragments: %q", fragments)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one settlement, got %d", len(results))
	}
	if results[0].TurnCount != 2 || results[0].Phase != domain.PhasePlaying {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestSessionDropsMalformedFrameBetweenValidOnes(t *testing.T) {
	ts := streamServer(t,
		"event: narration_chunk\ndata: {\"chunk\":\"first\"}\n\n",
		"event: narration_chunk\ndata: not-json\n\n",
		"event: narration_chunk\ndata: {\"chunk\":\"second\"}\n\n",
		"event: complete\ndata: {\"session_id\":\"s1\",\"phase\":\"active\"}\n\n",
	)
	defer ts.Close()

	rec := &recorder{}
	s, err := Open(context.Background(), ts.URL, ActionRequest{SessionID: "s1", Action: "look"}, rec.handlers())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	awaitDone(t, s)

	fragments, results, errs := rec.snapshot()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(fragments) != 2 || fragments[0] != "first" || fragments[1] != "second" {
		t.Fatalf("malformed frame affected valid delivery: %q", fragments)
	}
	if len(results) != 1 {
		t.Fatalf("expected settlement despite malformed frame, got %d", len(results))
	}
}

func TestSessionServerErrorEvent(t *testing.T) {
	ts := streamServer(t,
		"event: narration_chunk\ndata: {\"chunk\":\"The floor gives way\"}\n\n",
		"event: error\ndata: {\"error\":\"the narrator has lost the thread\"}\n\n",
	)
	defer ts.Close()

	rec := &recorder{}
	s, err := Open(context.Background(), ts.URL, ActionRequest{SessionID: "s1", Action: "jump"}, rec.handlers())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	awaitDone(t, s)

	_, results, errs := rec.snapshot()
	if len(results) != 0 {
		t.Fatalf("unexpected success settlement: %+v", results)
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error, got %d", len(errs))
	}
	if errs[0].Kind != domain.ErrorKindServer {
		t.Errorf("expected server error kind, got %q", errs[0].Kind)
	}
	if errs[0].Message != "the narrator has lost the thread" {
		t.Errorf("unexpected message: %q", errs[0].Message)
	}
}

func TestSessionNonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"session expired"}`, http.StatusGone)
	}))
	defer ts.Close()

	rec := &recorder{}
	s, err := Open(context.Background(), ts.URL, ActionRequest{SessionID: "s1", Action: "wait"}, rec.handlers())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	awaitDone(t, s)

	_, results, errs := rec.snapshot()
	if len(results) != 0 || len(errs) != 1 {
		t.Fatalf("expected only a transport error, got %d results / %d errors", len(results), len(errs))
	}
	if errs[0].Kind != domain.ErrorKindTransport {
		t.Errorf("expected transport error kind, got %q", errs[0].Kind)
	}
	if errs[0].StatusCode != http.StatusGone {
		t.Errorf("expected status %d, got %d", http.StatusGone, errs[0].StatusCode)
	}
}

func TestSessionStreamEndsWithoutTerminalFrame(t *testing.T) {
	ts := streamServer(t,
		"event: narration_chunk\ndata: {\"chunk\":\"and then\"}\n\n",
	)
	defer ts.Close()

	rec := &recorder{}
	s, err := Open(context.Background(), ts.URL, ActionRequest{SessionID: "s1", Action: "listen"}, rec.handlers())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	awaitDone(t, s)

	fragments, results, errs := rec.snapshot()
	if len(fragments) != 1 {
		t.Fatalf("expected the fragment before the drop, got %q", fragments)
	}
	if len(results) != 0 || len(errs) != 1 {
		t.Fatalf("expected a synthesized transport error, got %d results / %d errors", len(results), len(errs))
	}
	if errs[0].Kind != domain.ErrorKindTransport {
		t.Errorf("expected transport error kind, got %q", errs[0].Kind)
	}
}

func TestSessionFinalFrameWithoutTrailingSeparator(t *testing.T) {
	ts := streamServer(t,
		"event: narration_chunk\ndata: {\"chunk\":\"almost \"}\n\n",
		"event: complete\ndata: {\"session_id\":\"s1\",\"phase\":\"won\",\"narration\":\"almost there\"}",
	)
	defer ts.Close()

	rec := &recorder{}
	s, err := Open(context.Background(), ts.URL, ActionRequest{SessionID: "s1", Action: "push"}, rec.handlers())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	awaitDone(t, s)

	_, results, errs := rec.snapshot()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(results) != 1 {
		t.Fatalf("expected trailing block to settle the session, got %d results", len(results))
	}
	if results[0].Phase != domain.PhaseWon {
		t.Errorf("unexpected phase: %q", results[0].Phase)
	}
}

func TestSessionDuplicateTerminalFrameSettlesOnce(t *testing.T) {
	ts := streamServer(t,
		"event: complete\ndata: {\"session_id\":\"s1\",\"phase\":\"active\",\"narration\":\"done\"}\n\n",
		"event: complete\ndata: {\"session_id\":\"s1\",\"phase\":\"active\",\"narration\":\"done again\"}\n\n",
	)
	defer ts.Close()

	rec := &recorder{}
	s, err := Open(context.Background(), ts.URL, ActionRequest{SessionID: "s1", Action: "rest"}, rec.handlers())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	awaitDone(t, s)

	_, results, errs := rec.snapshot()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one settlement, got %d", len(results))
	}
	if results[0].Narration != "done" {
		t.Errorf("expected first terminal frame to win, got %q", results[0].Narration)
	}
}

func TestSessionCancelSuppressesCallbacks(t *testing.T) {
	firstFragment := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: narration_chunk\ndata: {\"chunk\":\"hold\"}\n\n")
		flusher.Flush()
		close(firstFragment)
		<-r.Context().Done()
	}))
	defer ts.Close()

	rec := &recorder{}
	s, err := Open(context.Background(), ts.URL, ActionRequest{SessionID: "s1", Action: "descend"}, rec.handlers())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	select {
	case <-firstFragment:
	case <-time.After(5 * time.Second):
		t.Fatal("server never delivered the first fragment")
	}
	s.Cancel()
	awaitDone(t, s)

	_, results, errs := rec.snapshot()
	if len(results) != 0 {
		t.Errorf("cancelled session delivered a settlement: %+v", results)
	}
	if len(errs) != 0 {
		t.Errorf("cancelled session surfaced an error: %v", errs)
	}
}
