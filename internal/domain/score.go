package domain

// ScoreReport is the rubric evaluation of a finished call.
type ScoreReport struct {
	TotalScore          int                 `json:"total_score"`
	Dimensions          map[string]int      `json:"dimensions"`
	Misses              []string            `json:"misses"`
	ReplacementPhrasing ReplacementPhrasing `json:"replacement_phrasing"`
}

// ReplacementPhrasing is a before/after coaching example.
type ReplacementPhrasing struct {
	Actual   string `json:"actual"`
	Stronger string `json:"stronger"`
}
