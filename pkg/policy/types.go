package policy

import (
	"time"

	"governor-hq/ganymede/pkg/classifier"
)

// Mode is a policy's promotion mode.
type Mode string

const (
	// ModeShadow observes and predicts but never acts.
	ModeShadow Mode = "shadow"

	// ModeCandidate acts, gated by a blast-radius risk check.
	ModeCandidate Mode = "candidate"

	// ModePromoted acts autonomously without a human gate.
	ModePromoted Mode = "promoted"

	// ModeKilled is terminal; a killed policy is ignored entirely.
	ModeKilled Mode = "killed"
)

// Policy is a registered if-trigger-then-action rule with its promotion
// mode and accuracy statistics.
type Policy struct {
	// ID is the unique policy identifier.
	ID string `json:"id"`

	// Name is the human-readable policy name.
	Name string `json:"name"`

	// TriggerPattern selects the event types this policy reacts to.
	TriggerPattern string `json:"trigger_pattern"`

	// Action is the action taken when the policy is allowed to act.
	// An action of the form "transition:<state>" implies an entity
	// lifecycle transition and requires a blast-radius check.
	Action string `json:"action"`

	// ExpectedOutcomeSign is the outcome sign this policy predicts.
	ExpectedOutcomeSign classifier.OutcomeSign `json:"expected_outcome_sign"`

	// Mode is the current promotion mode.
	Mode Mode `json:"mode"`

	// ObservationCount is the number of observations recorded.
	ObservationCount int `json:"observation_count"`

	// CorrectPredictions is the number of observations whose predicted
	// sign matched the actual sign. Never exceeds ObservationCount.
	CorrectPredictions int `json:"correct_predictions"`

	// CreatedAt is when the policy was registered.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy last changed (counters or mode).
	UpdatedAt time.Time `json:"updated_at"`
}

// Confidence is the fraction of past predictions that matched actual
// outcomes; 0 while no observations have been recorded.
func (p Policy) Confidence() float64 {
	if p.ObservationCount == 0 {
		return 0
	}
	return float64(p.CorrectPredictions) / float64(p.ObservationCount)
}

// Definition is the input to Register.
type Definition struct {
	// Name is the human-readable policy name.
	Name string `json:"name" yaml:"name"`

	// TriggerPattern selects the event types this policy reacts to.
	// Must be non-empty.
	TriggerPattern string `json:"trigger_pattern" yaml:"trigger_pattern"`

	// Action is the action to take. Must be non-empty.
	Action string `json:"action" yaml:"action"`

	// ExpectedOutcomeSign is "positive" or "negative".
	ExpectedOutcomeSign string `json:"expected_outcome_sign" yaml:"expected_outcome_sign"`
}

// Thresholds are the automatic promotion gates.
type Thresholds struct {
	// CandidateObservations is the minimum sample size for shadow -> candidate.
	CandidateObservations int

	// CandidateConfidence is the minimum confidence for shadow -> candidate.
	CandidateConfidence float64

	// PromotedObservations is the minimum sample size for candidate -> promoted.
	PromotedObservations int

	// PromotedConfidence is the minimum confidence for candidate -> promoted.
	PromotedConfidence float64
}

// DefaultThresholds returns the default promotion gates.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CandidateObservations: 20,
		CandidateConfidence:   0.70,
		PromotedObservations:  100,
		PromotedConfidence:    0.90,
	}
}
