package domain

import (
	"testing"
	"time"
)

func TestOutcomeFlags_Truthy(t *testing.T) {
	flags := OutcomeFlags{
		"true":        true,
		"false":       false,
		"one":         float64(1),
		"zero":        float64(0),
		"int":         3,
		"string":      "yes",
		"empty":       "",
		"nil":         nil,
		"list":        []any{"x"},
		"empty_list":  []any{},
		"object":      map[string]any{"k": 1},
		"empty_obj":   map[string]any{},
		"other_types": struct{}{},
	}

	tests := []struct {
		key  string
		want bool
	}{
		{"true", true},
		{"false", false},
		{"one", true},
		{"zero", false},
		{"int", true},
		{"string", true},
		{"empty", false},
		{"nil", false},
		{"list", true},
		{"empty_list", false},
		{"object", true},
		{"empty_obj", false},
		{"other_types", true},
		{"missing", false},
	}
	for _, tt := range tests {
		if got := flags.Truthy(tt.key); got != tt.want {
			t.Errorf("Truthy(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}

	var none OutcomeFlags
	if none.Truthy(OutcomeCloseAttempt) {
		t.Error("nil flags must be falsy")
	}
}

func TestOutcomeFlags_Has(t *testing.T) {
	flags := OutcomeFlags{OutcomeObjectionResolved: false}
	if !flags.Has(OutcomeObjectionResolved) {
		t.Fatal("present key with false value must be reported")
	}
	if flags.Has(OutcomeCloseAttempt) {
		t.Fatal("missing key must not be reported")
	}
	var none OutcomeFlags
	if none.Has(OutcomeObjectionResolved) {
		t.Fatal("nil flags have no keys")
	}
}

func TestValidateTranscript(t *testing.T) {
	ok := []TranscriptEntry{
		{Speaker: SpeakerTrainee, Text: "Hi"},
		{Speaker: SpeakerProspect, Text: "Who is this?"},
	}
	if err := ValidateTranscript(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateTranscript(nil); err != nil {
		t.Fatalf("empty transcript should be valid: %v", err)
	}

	bad := append(ok, TranscriptEntry{Speaker: "coach", Text: "psst"})
	if err := ValidateTranscript(bad); err == nil {
		t.Fatal("expected error for unknown speaker")
	}
}

func TestSession_Complete(t *testing.T) {
	s := &Session{ID: "s1", CreatedAt: time.Now()}
	if s.IsCompleted() {
		t.Fatal("new session should not be completed")
	}

	transcript := []TranscriptEntry{{Speaker: SpeakerTrainee, Text: "Hi"}}
	at := time.Now()
	s.Complete(transcript, ScoreReport{TotalScore: 61}, at)

	if !s.IsCompleted() {
		t.Fatal("expected session to be completed")
	}
	if s.Score.TotalScore != 61 || !s.CompletedAt.Equal(at) {
		t.Fatalf("unexpected completion state %+v", s)
	}

	transcript[0].Text = "changed"
	if s.Transcript[0].Text != "Hi" {
		t.Fatal("Complete must copy the transcript")
	}
}

func TestProspectState_InRange(t *testing.T) {
	tests := []struct {
		state ProspectState
		want  bool
	}{
		{DefaultProspectState, true},
		{ProspectState{0, 1}, true},
		{ProspectState{-0.01, 0.5}, false},
		{ProspectState{0.5, 1.01}, false},
	}
	for _, tt := range tests {
		if got := tt.state.InRange(); got != tt.want {
			t.Errorf("%+v.InRange() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestValidDuration(t *testing.T) {
	for minutes, want := range map[int]bool{0: false, 1: true, 15: true, 30: true, 31: false} {
		if got := ValidDuration(minutes); got != want {
			t.Errorf("ValidDuration(%d) = %v, want %v", minutes, got, want)
		}
	}
}
