package domain

// Room is one chamber of the game, as listed by the room API and cached
// locally for the room-select screen.
type Room struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Visited bool   `json:"visited"`
}

// SessionState is the server's view of a game session, returned by the
// session bootstrap and state-fetch calls. The orchestrator must hold a
// bootstrapped state before it accepts actions.
type SessionState struct {
	SessionID     string `json:"session_id"`
	RoomID        string `json:"room_id"`
	Phase         Phase  `json:"-"`
	TurnCount     int    `json:"turn_count"`
	HintsUnlocked int    `json:"hints_unlocked"`
	Narration     string `json:"narration"`
}
