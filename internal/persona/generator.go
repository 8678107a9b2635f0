// Package persona samples synthetic prospect personas from a seed.
package persona

import (
	"math/rand/v2"

	"github.com/ashureev/callcoach/internal/domain"
)

// Version identifies the sampling algorithm. Personas are reproducible from a
// seed only within the same version.
const Version = "pcg-1"

// Fixed enumerations the generator draws from.
var (
	Industries    = []string{"manufacturing", "logistics", "healthcare", "construction", "saas"}
	Roles         = []string{"operations_manager", "vp_sales", "it_director", "owner", "procurement_lead"}
	PainPoints    = []string{"manual_workflows", "slow_reporting", "high_churn", "low_conversion", "tool_sprawl"}
	Personalities = []string{"skeptical", "direct", "friendly", "impatient", "analytical"}
	Urgencies     = []string{"this_quarter", "this_month", "no_rush", "active_project"}
	Objections    = []string{"no_budget", "busy", "send_email", "already_vendor", "no_interest"}
)

// Generate returns the persona for seed. Objections seen in recent are left
// out of the objection pool unless that would empty it.
//
// The draw order is part of the output contract: changing it changes which
// persona a stored seed maps to.
func Generate(seed int64, recent []domain.Persona) domain.Persona {
	rnd := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))

	p := domain.Persona{
		Industry:    pick(rnd, Industries),
		Role:        pick(rnd, Roles),
		PainPoint:   pick(rnd, PainPoints),
		Personality: pick(rnd, Personalities),
		Urgency:     pick(rnd, Urgencies),
	}
	p.PrimaryObjection = pick(rnd, objectionPool(recent))
	return p
}

// RecentFromObjections adapts a plain list of objections to the recent
// sessions shape Generate expects.
func RecentFromObjections(objections []string) []domain.Persona {
	recent := make([]domain.Persona, 0, len(objections))
	for _, o := range objections {
		recent = append(recent, domain.Persona{PrimaryObjection: o})
	}
	return recent
}

func objectionPool(recent []domain.Persona) []string {
	seen := make(map[string]struct{}, len(recent))
	for _, p := range recent {
		if p.PrimaryObjection != "" {
			seen[p.PrimaryObjection] = struct{}{}
		}
	}

	pool := make([]string, 0, len(Objections))
	for _, o := range Objections {
		if _, ok := seen[o]; !ok {
			pool = append(pool, o)
		}
	}
	if len(pool) == 0 {
		return Objections
	}
	return pool
}

func pick(rnd *rand.Rand, values []string) string {
	return values[rnd.IntN(len(values))]
}
