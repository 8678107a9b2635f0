package dialogue

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/callcoach/internal/domain"
)

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAdvance_FallbackExample(t *testing.T) {
	state := domain.ProspectState{Trust: 0.4, Resistance: 0.6}

	turn, err := Advance(context.Background(), state, "Can I get 30 seconds to explain why I called?", "busy", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approxEqual(turn.NextState.Trust, 0.5) {
		t.Fatalf("expected trust 0.5, got %v", turn.NextState.Trust)
	}
	if !approxEqual(turn.NextState.Resistance, 0.64) {
		t.Fatalf("expected resistance 0.64, got %v", turn.NextState.Resistance)
	}
	if turn.Text != ReplyBusy {
		t.Fatalf("unexpected reply %q", turn.Text)
	}
	if turn.Mode != domain.ReplyModeFallback {
		t.Fatalf("expected fallback mode, got %q", turn.Mode)
	}
}

func TestFallbackReply(t *testing.T) {
	tests := map[string]string{
		"busy":           ReplyBusy,
		"no_budget":      ReplyNoBudget,
		"send_email":     ReplyGeneric,
		"already_vendor": ReplyGeneric,
		"":               ReplyGeneric,
	}
	for objection, want := range tests {
		if got := FallbackReply(objection); got != want {
			t.Errorf("FallbackReply(%q) = %q, want %q", objection, got, want)
		}
	}
}

func TestAdvance_EmptyObjectionDefaultsToBusy(t *testing.T) {
	turn, err := Advance(context.Background(), domain.DefaultProspectState, "hello", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.Text != ReplyBusy {
		t.Fatalf("expected busy reply, got %q", turn.Text)
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		wantTrust      float64
		wantResistance float64
	}{
		{"no cues", "hi there", 0.45, 0.54},
		{"trust cue", "this will be QUICK", 0.6, 0.54},
		{"resistance cue", "we can help", 0.45, 0.38},
		{"both cues", "a quick note on value", 0.6, 0.38},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := Transition(domain.DefaultProspectState, tt.text)
			if !approxEqual(next.Trust, tt.wantTrust) {
				t.Fatalf("trust = %v, want %v", next.Trust, tt.wantTrust)
			}
			if !approxEqual(next.Resistance, tt.wantResistance) {
				t.Fatalf("resistance = %v, want %v", next.Resistance, tt.wantResistance)
			}
		})
	}
}

func TestTransition_StaysInRange(t *testing.T) {
	texts := []string{"", "quick value", "nothing", "30 seconds", "help me"}
	edges := []float64{0, 0.01, 0.5, 0.97, 1}

	for _, text := range texts {
		for _, trust := range edges {
			for _, resistance := range edges {
				next := Transition(domain.ProspectState{Trust: trust, Resistance: resistance}, text)
				if !next.InRange() {
					t.Fatalf("out of range state %+v for text %q from (%v, %v)", next, text, trust, resistance)
				}
			}
		}
	}
}

func TestAdvance_Augmented(t *testing.T) {
	gen := &fakeGenerator{reply: "  Fine, go ahead.  \n"}
	state := domain.ProspectState{Trust: 0.4, Resistance: 0.6}

	turn, err := Advance(context.Background(), state, "Can I get 30 seconds?", "no_budget", gen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.Text != "Fine, go ahead." {
		t.Fatalf("expected trimmed reply, got %q", turn.Text)
	}
	if turn.Mode != domain.ReplyModeAugmented {
		t.Fatalf("expected augmented mode, got %q", turn.Mode)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(gen.prompts))
	}

	prompt := gen.prompts[0]
	for _, want := range []string{"no_budget", "Trust=0.50", "resistance=0.64", "Can I get 30 seconds?"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt %q missing %q", prompt, want)
		}
	}
}

func TestAdvance_GeneratorFailure(t *testing.T) {
	backendErr := errors.New("connection refused")
	gen := &fakeGenerator{err: backendErr}

	turn, err := Advance(context.Background(), domain.DefaultProspectState, "hello", "busy", gen)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if !errors.Is(err, backendErr) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *GenerationError, got %T", err)
	}
	if !turn.NextState.InRange() || approxEqual(turn.NextState.Trust, 0) {
		t.Fatalf("expected state to be computed, got %+v", turn.NextState)
	}
}

func TestAdvance_EmptyGeneratorReply(t *testing.T) {
	gen := &fakeGenerator{reply: "   "}

	_, err := Advance(context.Background(), domain.DefaultProspectState, "hello", "busy", gen)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestEngine_FallsBackWhenGeneratorFails(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("boom")}
	engine := NewEngine(gen, time.Second, nil)
	state := domain.ProspectState{Trust: 0.3, Resistance: 0.7}
	text := "We help teams like yours"

	got := engine.Respond(context.Background(), state, text, "no_budget")
	want, _ := Advance(context.Background(), state, text, "no_budget", nil)

	if got != want {
		t.Fatalf("expected fallback turn %+v, got %+v", want, got)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("expected a single generator attempt, got %d", len(gen.prompts))
	}
}

func TestEngine_UsesGenerator(t *testing.T) {
	engine := NewEngine(&fakeGenerator{reply: "Who is this?"}, 0, nil)
	if !engine.Augmented() {
		t.Fatal("expected augmented engine")
	}

	turn := engine.Respond(context.Background(), domain.DefaultProspectState, "hello", "busy")
	if turn.Text != "Who is this?" || turn.Mode != domain.ReplyModeAugmented {
		t.Fatalf("unexpected turn %+v", turn)
	}
}

func TestEngine_NoGenerator(t *testing.T) {
	engine := NewEngine(nil, 0, nil)
	if engine.Augmented() {
		t.Fatal("expected fallback-only engine")
	}

	turn := engine.Respond(context.Background(), domain.DefaultProspectState, "hello", "already_vendor")
	if turn.Text != ReplyGeneric || turn.Mode != domain.ReplyModeFallback {
		t.Fatalf("unexpected turn %+v", turn)
	}
}
