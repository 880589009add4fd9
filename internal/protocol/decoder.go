package protocol

import (
	"encoding/json"
	"log/slog"

	"github.com/nightwell-games/lantern/internal/domain"
	"github.com/nightwell-games/lantern/internal/sse"
)

// chunkPayload is the wire shape of a narration_chunk event.
type chunkPayload struct {
	Chunk string `json:"chunk"`
}

// completePayload is the wire shape of a complete event.
type completePayload struct {
	SessionID              string                `json:"session_id"`
	TurnCount              int                   `json:"turn_count"`
	Phase                  string                `json:"phase"`
	HintsUnlocked          int                   `json:"hints_unlocked"`
	Outcome                string                `json:"outcome"`
	Narration              string                `json:"narration"`
	Traits                 *domain.TraitSnapshot `json:"traits,omitempty"`
	JourneyStats           *domain.JourneyStats  `json:"journey_stats,omitempty"`
	JournalChapterUnlocked string                `json:"journal_chapter_unlocked,omitempty"`
}

// errorPayload is the wire shape of an error event.
type errorPayload struct {
	Error string `json:"error"`
}

// Decoder converts frames into typed events. Frames with unrecognized
// event names or payloads that fail to decode are dropped, never
// escalated: a garbled frame must not abort the action.
type Decoder struct {
	logger *slog.Logger
}

// NewDecoder creates a decoder. A nil logger defaults to slog.Default().
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Decode maps a frame to its event. The second return is false when the
// frame was dropped.
func (d *Decoder) Decode(frame sse.Frame) (Event, bool) {
	switch frame.Event {
	case EventNarrationChunk:
		var payload chunkPayload
		if err := json.Unmarshal([]byte(frame.Data), &payload); err != nil {
			d.dropFrame(frame, err)
			return nil, false
		}
		return TextFragment{Text: payload.Chunk}, true

	case EventComplete:
		var payload completePayload
		if err := json.Unmarshal([]byte(frame.Data), &payload); err != nil {
			d.dropFrame(frame, err)
			return nil, false
		}
		return StreamCompleted{Result: d.toResult(payload)}, true

	case EventError:
		var payload errorPayload
		if err := json.Unmarshal([]byte(frame.Data), &payload); err != nil {
			d.dropFrame(frame, err)
			return nil, false
		}
		return StreamFailed{Message: payload.Error}, true

	default:
		d.logger.Debug("ignoring unrecognized event", slog.String("event", frame.Event))
		return nil, false
	}
}

func (d *Decoder) toResult(payload completePayload) domain.ActionResult {
	phase, known := domain.PhaseFromWire(payload.Phase)
	if !known {
		d.logger.Warn("unknown phase in completion, treating as playing",
			slog.String("phase", payload.Phase),
		)
	}
	return domain.ActionResult{
		SessionID:              payload.SessionID,
		TurnCount:              payload.TurnCount,
		Phase:                  phase,
		HintsUnlocked:          payload.HintsUnlocked,
		Outcome:                payload.Outcome,
		Narration:              payload.Narration,
		Traits:                 payload.Traits,
		JourneyStats:           payload.JourneyStats,
		JournalChapterUnlocked: payload.JournalChapterUnlocked,
	}
}

func (d *Decoder) dropFrame(frame sse.Frame, err error) {
	d.logger.Warn("dropping undecodable frame",
		slog.String("event", frame.Event),
		slog.String("error", err.Error()),
	)
}
