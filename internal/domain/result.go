package domain

// TraitSnapshot is the player's trait scores at the end of a turn.
// The server includes it only when a turn changed at least one trait.
type TraitSnapshot struct {
	Courage int `json:"courage"`
	Cunning int `json:"cunning"`
	Empathy int `json:"empathy"`
	Resolve int `json:"resolve"`
}

// JourneyStats summarizes progress across the whole session.
type JourneyStats struct {
	RoomsVisited int `json:"rooms_visited"`
	HintsUsed    int `json:"hints_used"`
	TotalTurns   int `json:"total_turns"`
	SecretsFound int `json:"secrets_found"`
}

// ActionResult is the settled outcome of one player action: the
// authoritative state the server reports alongside the final narration.
// Traits, JourneyStats, and JournalChapterUnlocked are present only when
// the turn produced them.
type ActionResult struct {
	SessionID              string         `json:"session_id"`
	TurnCount              int            `json:"turn_count"`
	Phase                  Phase          `json:"-"`
	HintsUnlocked          int            `json:"hints_unlocked"`
	Outcome                string         `json:"outcome"`
	Narration              string         `json:"narration"`
	Traits                 *TraitSnapshot `json:"traits,omitempty"`
	JourneyStats           *JourneyStats  `json:"journey_stats,omitempty"`
	JournalChapterUnlocked string         `json:"journal_chapter_unlocked,omitempty"`
}
