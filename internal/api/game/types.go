package game

import "github.com/nightwell-games/lantern/internal/domain"

// StartSessionRequest starts a new session or resumes an existing one.
// SessionID is set only when resuming.
type StartSessionRequest struct {
	PlayerID  string `json:"player_id"`
	RoomID    string `json:"room_id"`
	SessionID string `json:"session_id,omitempty"`
}

// sessionPayload is the wire shape shared by the session endpoints.
type sessionPayload struct {
	SessionID     string `json:"session_id"`
	RoomID        string `json:"room_id"`
	Phase         string `json:"phase"`
	TurnCount     int    `json:"turn_count"`
	HintsUnlocked int    `json:"hints_unlocked"`
	Narration     string `json:"narration"`
}

// actionRequest is the non-streaming action submission body.
type actionRequest struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
	RoomID    string `json:"room_id"`
}

// roomListPayload is the wire shape of the room list endpoint.
type roomListPayload struct {
	Rooms []roomPayload `json:"rooms"`
}

type roomPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Visited bool   `json:"visited"`
}

// actionResultPayload is the wire shape of a non-streaming action
// result. It matches the streaming `complete` event payload.
type actionResultPayload struct {
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

// errorPayload is the error body returned on non-success statuses.
type errorPayload struct {
	Error string `json:"error"`
}
