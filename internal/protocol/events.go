// Package protocol decodes parsed wire frames into typed narration
// events.
package protocol

import "github.com/nightwell-games/lantern/internal/domain"

// Wire event names recognized on the narration stream. Anything else is
// ignored without aborting the stream.
const (
	EventNarrationChunk = "narration_chunk"
	EventComplete       = "complete"
	EventError          = "error"
)

// Event is a decoded narration stream event: TextFragment, StreamCompleted,
// or StreamFailed.
type Event interface {
	streamEvent()
}

// TextFragment is an incremental piece of narration text.
type TextFragment struct {
	Text string
}

// StreamCompleted is the terminal success event carrying the authoritative
// action result.
type StreamCompleted struct {
	Result domain.ActionResult
}

// StreamFailed is the terminal failure event reported by the server.
type StreamFailed struct {
	Message string
}

func (TextFragment) streamEvent()    {}
func (StreamCompleted) streamEvent() {}
func (StreamFailed) streamEvent()    {}
