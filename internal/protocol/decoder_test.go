package protocol

import (
	"testing"

	"github.com/nightwell-games/lantern/internal/domain"
	"github.com/nightwell-games/lantern/internal/sse"
)

func TestDecodeNarrationChunk(t *testing.T) {
	d := NewDecoder(nil)

	ev, ok := d.Decode(sse.Frame{Event: "narration_chunk", Data: `{"chunk":"The door "}`})
	if !ok {
		t.Fatal("expected frame to decode")
	}
	frag, ok := ev.(TextFragment)
	if !ok {
		t.Fatalf("expected TextFragment, got %T", ev)
	}
	if frag.Text != "The door " {
		t.Errorf("unexpected text: %q", frag.Text)
	}
}

func TestDecodeComplete(t *testing.T) {
	d := NewDecoder(nil)

	data := `{
		"session_id": "s1",
		"turn_count": 2,
		"phase": "active",
		"hints_unlocked": 1,
		"outcome": "ok",
		"narration": "The door creaks.",
		"traits": {"courage": 3, "cunning": 1, "empathy": 2, "resolve": 0},
		"journey_stats": {"rooms_visited": 4, "hints_used": 1, "total_turns": 2, "secrets_found": 0},
		"journal_chapter_unlocked": "the-cellar"
	}`
	ev, ok := d.Decode(sse.Frame{Event: "complete", Data: data})
	if !ok {
		t.Fatal("expected frame to decode")
	}
	done, ok := ev.(StreamCompleted)
	if !ok {
		t.Fatalf("expected StreamCompleted, got %T", ev)
	}

	res := done.Result
	if res.SessionID != "s1" || res.TurnCount != 2 {
		t.Errorf("unexpected session/turn: %q/%d", res.SessionID, res.TurnCount)
	}
	if res.Phase != domain.PhasePlaying {
		t.Errorf("expected playing phase, got %q", res.Phase)
	}
	if res.Narration != "The door creaks." {
		t.Errorf("unexpected narration: %q", res.Narration)
	}
	if res.Traits == nil || res.Traits.Courage != 3 {
		t.Errorf("unexpected traits: %+v", res.Traits)
	}
	if res.JourneyStats == nil || res.JourneyStats.RoomsVisited != 4 {
		t.Errorf("unexpected journey stats: %+v", res.JourneyStats)
	}
	if res.JournalChapterUnlocked != "the-cellar" {
		t.Errorf("unexpected journal unlock: %q", res.JournalChapterUnlocked)
	}
}

func TestDecodeCompletePhases(t *testing.T) {
	tests := []struct {
		wire string
		want domain.Phase
	}{
		{"active", domain.PhasePlaying},
		{"won", domain.PhaseWon},
		{"lost", domain.PhaseLost},
		{"something-new", domain.PhasePlaying},
	}

	d := NewDecoder(nil)
	for _, tt := range tests {
		ev, ok := d.Decode(sse.Frame{Event: "complete", Data: `{"session_id":"s1","phase":"` + tt.wire + `"}`})
		if !ok {
			t.Fatalf("phase %q: expected decode", tt.wire)
		}
		if got := ev.(StreamCompleted).Result.Phase; got != tt.want {
			t.Errorf("phase %q: got %q, want %q", tt.wire, got, tt.want)
		}
	}
}

func TestDecodeError(t *testing.T) {
	d := NewDecoder(nil)

	ev, ok := d.Decode(sse.Frame{Event: "error", Data: `{"error":"the lantern gutters out"}`})
	if !ok {
		t.Fatal("expected frame to decode")
	}
	failed, ok := ev.(StreamFailed)
	if !ok {
		t.Fatalf("expected StreamFailed, got %T", ev)
	}
	if failed.Message != "the lantern gutters out" {
		t.Errorf("unexpected message: %q", failed.Message)
	}
}

func TestDecodeMalformedPayloadDropped(t *testing.T) {
	d := NewDecoder(nil)

	if _, ok := d.Decode(sse.Frame{Event: "narration_chunk", Data: "not-json"}); ok {
		t.Error("expected malformed chunk payload to be dropped")
	}
	if _, ok := d.Decode(sse.Frame{Event: "complete", Data: "{broken"}); ok {
		t.Error("expected malformed completion payload to be dropped")
	}
}

func TestDecodeUnrecognizedEventIgnored(t *testing.T) {
	d := NewDecoder(nil)

	if _, ok := d.Decode(sse.Frame{Event: "heartbeat", Data: `{}`}); ok {
		t.Error("expected unrecognized event to be ignored")
	}
}
