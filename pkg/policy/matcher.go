package policy

import "strings"

// Matcher decides whether an event type satisfies a trigger pattern.
// It is an explicit capability so matching strategies can evolve without
// touching the rollout controller.
type Matcher interface {
	// Matches reports whether the event type satisfies the pattern.
	Matches(eventType string) bool
}

// ExactMatcher matches the event type by exact string equality.
type ExactMatcher struct {
	// Pattern is the exact event type to match.
	Pattern string
}

// Matches implements Matcher.
func (m ExactMatcher) Matches(eventType string) bool {
	return eventType == m.Pattern
}

// PrefixMatcher matches event types sharing a prefix.
type PrefixMatcher struct {
	// Prefix is the required event type prefix.
	Prefix string
}

// Matches implements Matcher.
func (m PrefixMatcher) Matches(eventType string) bool {
	return strings.HasPrefix(eventType, m.Prefix)
}

// NormalizePattern canonicalizes a trigger pattern the same way event types
// are normalized during classification, so patterns and classified types
// compare in one case.
func NormalizePattern(pattern string) string {
	return strings.ToLower(strings.TrimSpace(pattern))
}

// NewMatcher builds the matcher for a trigger pattern. A trailing "*"
// selects prefix matching; anything else is exact equality.
func NewMatcher(pattern string) Matcher {
	if strings.HasSuffix(pattern, "*") {
		return PrefixMatcher{Prefix: strings.TrimSuffix(pattern, "*")}
	}
	return ExactMatcher{Pattern: pattern}
}
