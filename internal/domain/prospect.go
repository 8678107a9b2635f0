package domain

// ProspectState is the prospect's disposition. Values are replaced on every
// turn, never mutated in place.
type ProspectState struct {
	Trust      float64 `json:"trust"`
	Resistance float64 `json:"resistance"`
}

// DefaultProspectState is the disposition at the start of a call.
var DefaultProspectState = ProspectState{Trust: 0.5, Resistance: 0.5}

// InRange reports whether both fields lie in [0,1].
func (s ProspectState) InRange() bool {
	return s.Trust >= 0 && s.Trust <= 1 && s.Resistance >= 0 && s.Resistance <= 1
}

// ReplyMode records how a prospect reply was produced.
type ReplyMode string

const (
	// ReplyModeAugmented means the text came from a generation backend.
	ReplyModeAugmented ReplyMode = "augmented"
	// ReplyModeFallback means the text came from the fixed rule table.
	ReplyModeFallback ReplyMode = "fallback"
)

// DialogueTurn is the prospect's reply to one trainee utterance.
type DialogueTurn struct {
	Text      string        `json:"text"`
	NextState ProspectState `json:"next_state"`
	Mode      ReplyMode     `json:"mode"`
}
