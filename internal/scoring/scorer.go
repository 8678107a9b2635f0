// Package scoring evaluates a finished call transcript against the coaching
// rubric.
package scoring

import (
	"math"
	"strings"

	"github.com/ashureev/callcoach/internal/domain"
)

// Rubric dimension names.
const (
	OpenerClarity     = "opener_clarity"
	RapportTone       = "rapport_tone"
	DiscoveryDepth    = "discovery_depth"
	ObjectionHandling = "objection_handling"
	ValueArticulation = "value_articulation"
	CloseQuality      = "close_quality"
	TalkListenBalance = "talk_listen_balance"
)

// Dimension is a rubric dimension and its weight in the total score.
type Dimension struct {
	Name   string
	Weight float64
}

// Dimensions lists the rubric in evaluation order. Weights sum to 1.
var Dimensions = []Dimension{
	{OpenerClarity, 0.15},
	{RapportTone, 0.12},
	{DiscoveryDepth, 0.18},
	{ObjectionHandling, 0.16},
	{ValueArticulation, 0.14},
	{CloseQuality, 0.15},
	{TalkListenBalance, 0.10},
}

// Coaching messages, in priority order.
const (
	MissDiscovery = "Ask one additional pain-focused discovery question."
	MissClose     = "Make a direct next-step close before ending the call."
	MissBalance   = "Reduce monologue length and invite prospect responses earlier."
	MissNone      = "Solid execution. Next improvement: tighten opener in first 10 seconds."
)

const (
	missThreshold = 65
	maxMisses     = 3
)

// ExamplePhrasing is the before/after pair attached to every report.
var ExamplePhrasing = domain.ReplacementPhrasing{
	Actual:   "Can I get 30 seconds?",
	Stronger: "I called because teams like yours are cutting wasted follow-up time. Worth 30 seconds?",
}

// Score evaluates a transcript. It never fails; absent outcome flags count
// as false.
func Score(transcript []domain.TranscriptEntry, outcomes domain.OutcomeFlags) domain.ScoreReport {
	traineeTurns := 0
	traineeWords := 0
	totalWords := 0
	for _, entry := range transcript {
		words := len(strings.Fields(entry.Text))
		totalWords += words
		if entry.Speaker == domain.SpeakerTrainee {
			traineeTurns++
			traineeWords += words
		}
	}
	if totalWords == 0 {
		totalWords = 1
	}
	talkRatio := float64(traineeWords) / float64(totalWords)

	dims := map[string]int{
		OpenerClarity:     clip(65 + pick(traineeTurns > 0, 10, -20)),
		RapportTone:       clip(60 + pick(talkRatio <= 0.65, 5, -10)),
		DiscoveryDepth:    clip(50 + math.Min(20, float64(3*traineeTurns))),
		ObjectionHandling: clip(55 + pick(outcomes.Has(domain.OutcomeObjectionResolved), 10, 0)),
		ValueArticulation: clip(58 + pick(outcomes.Truthy(domain.OutcomeValueStatement), 10, 0)),
		CloseQuality:      clip(50 + pick(outcomes.Truthy(domain.OutcomeCloseAttempt), 20, -10)),
		TalkListenBalance: clip(100 - math.Abs(0.5-talkRatio)*120),
	}

	var weighted float64
	for _, d := range Dimensions {
		weighted += float64(dims[d.Name]) * d.Weight
	}

	return domain.ScoreReport{
		TotalScore:          clip(weighted),
		Dimensions:          dims,
		Misses:              misses(dims),
		ReplacementPhrasing: ExamplePhrasing,
	}
}

func misses(dims map[string]int) []string {
	var out []string
	if dims[DiscoveryDepth] < missThreshold {
		out = append(out, MissDiscovery)
	}
	if dims[CloseQuality] < missThreshold {
		out = append(out, MissClose)
	}
	if dims[TalkListenBalance] < missThreshold {
		out = append(out, MissBalance)
	}
	if len(out) == 0 {
		out = append(out, MissNone)
	}
	if len(out) > maxMisses {
		out = out[:maxMisses]
	}
	return out
}

// clip rounds half to even and bounds the result to [0,100].
func clip(x float64) int {
	return int(max(0, min(100, math.RoundToEven(x))))
}

func pick(cond bool, yes, no float64) float64 {
	if cond {
		return yes
	}
	return no
}
