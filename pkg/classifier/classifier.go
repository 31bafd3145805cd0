package classifier

import "strings"

// Severity is the severity tier assigned to an occurrence.
type Severity string

const (
	// SeverityCritical marks occurrences requiring prompt attention.
	SeverityCritical Severity = "critical"

	// SeverityElevated marks notable but non-critical occurrences.
	SeverityElevated Severity = "elevated"

	// SeverityTerminal marks occurrences that end an entity's lifecycle.
	SeverityTerminal Severity = "terminal"
)

// OutcomeSign is the sign of a classified real-world outcome.
type OutcomeSign string

const (
	// OutcomePositive marks a favorable outcome.
	OutcomePositive OutcomeSign = "positive"

	// OutcomeNegative marks an unfavorable outcome.
	OutcomeNegative OutcomeSign = "negative"
)

// Classification is the result of classifying one occurrence.
type Classification struct {
	// Type is the normalized event type.
	Type string

	// Tier is the assigned severity tier.
	Tier Severity

	// Outcome is the outcome sign the confidence tracker compares policy
	// predictions against.
	Outcome OutcomeSign
}

// Classifier assigns types and severity tiers from a configured table.
type Classifier struct {
	// tiers maps normalized event type to severity tier.
	tiers map[string]Severity

	// defaultTier applies to types absent from the table.
	defaultTier Severity
}

// Config contains classifier configuration.
type Config struct {
	// Tiers maps event type to severity tier name
	// ("critical", "elevated", "terminal").
	Tiers map[string]string

	// DefaultTier applies to unlisted event types. Default: "elevated".
	DefaultTier string
}

// New creates a classifier from the given configuration.
func New(cfg Config) *Classifier {
	tiers := make(map[string]Severity, len(cfg.Tiers))
	for eventType, tier := range cfg.Tiers {
		if s, ok := parseSeverity(tier); ok {
			tiers[normalize(eventType)] = s
		}
	}

	defaultTier := SeverityElevated
	if s, ok := parseSeverity(cfg.DefaultTier); ok {
		defaultTier = s
	}

	return &Classifier{
		tiers:       tiers,
		defaultTier: defaultTier,
	}
}

// Classify assigns the event type's severity tier and derives the outcome
// sign. The payload's "outcome" field ("positive"/"negative"), when present,
// overrides the tier-derived sign.
func (c *Classifier) Classify(eventType string, payload map[string]any) Classification {
	normalized := normalize(eventType)

	tier, ok := c.tiers[normalized]
	if !ok {
		tier = c.defaultTier
	}

	outcome := signForTier(tier)
	if raw, ok := payload["outcome"]; ok {
		if s, ok := raw.(string); ok {
			switch strings.ToLower(s) {
			case string(OutcomePositive):
				outcome = OutcomePositive
			case string(OutcomeNegative):
				outcome = OutcomeNegative
			}
		}
	}

	return Classification{
		Type:    normalized,
		Tier:    tier,
		Outcome: outcome,
	}
}

// signForTier maps a severity tier to its default outcome sign. Elevated
// occurrences read as favorable signals; critical and terminal ones do not.
func signForTier(tier Severity) OutcomeSign {
	if tier == SeverityElevated {
		return OutcomePositive
	}
	return OutcomeNegative
}

func parseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(SeverityCritical):
		return SeverityCritical, true
	case string(SeverityElevated):
		return SeverityElevated, true
	case string(SeverityTerminal):
		return SeverityTerminal, true
	}
	return "", false
}

func normalize(eventType string) string {
	return strings.ToLower(strings.TrimSpace(eventType))
}
