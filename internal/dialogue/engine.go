// Package dialogue implements the prospect's side of a practice call: the
// trust/resistance transition and reply generation.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/callcoach/internal/domain"
)

// ErrGeneration matches every failure of the text generation backend.
var ErrGeneration = errors.New("text generation failed")

// GenerationError wraps a backend failure. It matches ErrGeneration.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrGeneration, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is reports ErrGeneration as a match.
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// Generator turns a prompt into prospect text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Trainee phrases that move the prospect's disposition.
var (
	trustCues      = []string{"30 seconds", "quick"}
	resistanceCues = []string{"value", "help"}
)

const (
	trustGain      = 0.10
	trustLoss      = -0.05
	resistanceDrop = -0.12
	resistanceGain = 0.04

	defaultObjection = "busy"
)

// Fixed replies used when no generator is available.
const (
	ReplyBusy     = "I have a minute. What exactly are you offering?"
	ReplyNoBudget = "We are not allocating budget right now."
	ReplyGeneric  = "I am listening, but keep it short."
)

// Transition computes the prospect state after hearing traineeText.
func Transition(state domain.ProspectState, traineeText string) domain.ProspectState {
	lowered := strings.ToLower(traineeText)

	trustDelta := trustLoss
	if containsAny(lowered, trustCues) {
		trustDelta = trustGain
	}
	resistanceDelta := resistanceGain
	if containsAny(lowered, resistanceCues) {
		resistanceDelta = resistanceDrop
	}

	return domain.ProspectState{
		Trust:      clamp01(state.Trust + trustDelta),
		Resistance: clamp01(state.Resistance + resistanceDelta),
	}
}

// FallbackReply returns the rule-based reply for an objection.
func FallbackReply(objection string) string {
	switch objection {
	case "busy":
		return ReplyBusy
	case "no_budget":
		return ReplyNoBudget
	default:
		return ReplyGeneric
	}
}

// BuildPrompt renders the generator prompt for one turn. next is the state
// after the transition.
func BuildPrompt(objection string, next domain.ProspectState, traineeText string) string {
	return fmt.Sprintf(
		"You are a realistic B2B cold call prospect. "+
			"Current objection style: %s. "+
			"Trust=%.2f, resistance=%.2f. "+
			"Reply in one short spoken sentence, natural and slightly skeptical.\n"+
			"Trainee said: %s",
		objection, next.Trust, next.Resistance, traineeText,
	)
}

// Advance runs one dialogue turn. With a nil generator the reply comes from
// the fallback table and Advance never fails. With a generator, any backend
// failure is returned as a *GenerationError; the state transition does not
// depend on the generator either way.
func Advance(ctx context.Context, state domain.ProspectState, traineeText, objection string, gen Generator) (domain.DialogueTurn, error) {
	if objection == "" {
		objection = defaultObjection
	}
	next := Transition(state, traineeText)

	if gen == nil {
		return domain.DialogueTurn{
			Text:      FallbackReply(objection),
			NextState: next,
			Mode:      domain.ReplyModeFallback,
		}, nil
	}

	text, err := gen.Generate(ctx, BuildPrompt(objection, next, traineeText))
	if err != nil {
		return domain.DialogueTurn{NextState: next}, &GenerationError{Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.DialogueTurn{NextState: next}, &GenerationError{Err: errors.New("empty reply")}
	}

	return domain.DialogueTurn{
		Text:      text,
		NextState: next,
		Mode:      domain.ReplyModeAugmented,
	}, nil
}

// Engine applies the retry policy around Advance: try the generator, and on
// a generation failure answer from the fallback table instead.
type Engine struct {
	gen     Generator
	timeout time.Duration
	logger  *slog.Logger
}

// NewEngine creates an engine. gen may be nil. A zero timeout leaves the
// caller's context deadline in charge.
func NewEngine(gen Generator, timeout time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{gen: gen, timeout: timeout, logger: logger}
}

// Augmented reports whether the engine has a generator.
func (e *Engine) Augmented() bool {
	return e.gen != nil
}

// Respond runs one turn and always produces a reply.
func (e *Engine) Respond(ctx context.Context, state domain.ProspectState, traineeText, objection string) domain.DialogueTurn {
	if e.gen != nil {
		genCtx := ctx
		if e.timeout > 0 {
			var cancel context.CancelFunc
			genCtx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}

		turn, err := Advance(genCtx, state, traineeText, objection, e.gen)
		if err == nil {
			return turn
		}
		e.logger.Warn("Prospect generation failed, using fallback reply",
			"objection", objection,
			"error", err,
		)
	}

	turn, _ := Advance(ctx, state, traineeText, objection, nil)
	return turn
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
