package domain

// Persona describes the simulated prospect for one session.
type Persona struct {
	Industry         string `json:"industry"`
	Role             string `json:"role"`
	PainPoint        string `json:"pain_point"`
	Personality      string `json:"personality"`
	Urgency          string `json:"urgency"`
	PrimaryObjection string `json:"primary_objection"`
}
