package domain

// Phase is the authoritative game phase reported by the narration server.
type Phase string

const (
	// PhasePlaying indicates the session is still in progress.
	PhasePlaying Phase = "playing"

	// PhaseWon indicates the player has completed the scenario.
	PhaseWon Phase = "won"

	// PhaseLost indicates the scenario ended in failure.
	PhaseLost Phase = "lost"
)

// PhaseFromWire maps the server's phase strings onto the client enum.
// Unknown values fall back to PhasePlaying so a server-side vocabulary
// addition never strands the client.
func PhaseFromWire(s string) (Phase, bool) {
	switch s {
	case "active", "playing":
		return PhasePlaying, true
	case "won", "victory":
		return PhaseWon, true
	case "lost", "defeat":
		return PhaseLost, true
	default:
		return PhasePlaying, false
	}
}

// Terminal reports whether the phase ends the session.
func (p Phase) Terminal() bool {
	return p == PhaseWon || p == PhaseLost
}
