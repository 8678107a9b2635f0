package domain

import "fmt"

// Speaker identifies who said a transcript line.
type Speaker string

const (
	SpeakerTrainee  Speaker = "trainee"
	SpeakerProspect Speaker = "prospect"
)

// Valid reports whether s is a known speaker.
func (s Speaker) Valid() bool {
	return s == SpeakerTrainee || s == SpeakerProspect
}

// TranscriptEntry is one line of a call transcript.
type TranscriptEntry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// ValidateTranscript checks that every entry names a known speaker.
func ValidateTranscript(entries []TranscriptEntry) error {
	for i, e := range entries {
		if !e.Speaker.Valid() {
			return fmt.Errorf("transcript entry %d: unknown speaker %q", i, e.Speaker)
		}
	}
	return nil
}

// OutcomeFlags carries caller-supplied call outcome signals such as
// "close_attempt". Missing keys are treated as false.
type OutcomeFlags map[string]any

// Outcome flag names understood by the scorer.
const (
	OutcomeObjectionResolved = "objection_resolved"
	OutcomeValueStatement    = "value_statement"
	OutcomeCloseAttempt      = "close_attempt"
)

// Has reports whether the flag is present, whatever its value.
func (o OutcomeFlags) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Truthy reports whether the flag is present with a truthy value.
func (o OutcomeFlags) Truthy(key string) bool {
	v, ok := o[key]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
