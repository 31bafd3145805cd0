package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"governor-hq/ganymede/pkg/audit"
	"governor-hq/ganymede/pkg/classifier"
)

// Registry owns all policies. It is the single writer for policy state:
// counters and mode changes are serialized and committed with their audit
// entries.
type Registry struct {
	mu         sync.RWMutex
	policies   map[string]*Policy
	matchers   map[string]Matcher
	thresholds Thresholds
	log        *audit.Log
	logger     *slog.Logger
}

// NewRegistry creates a policy registry writing to the given audit log.
func NewRegistry(log *audit.Log, thresholds Thresholds, logger *slog.Logger) (*Registry, error) {
	if log == nil {
		return nil, fmt.Errorf("audit log cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}

	return &Registry{
		policies:   make(map[string]*Policy),
		matchers:   make(map[string]Matcher),
		thresholds: thresholds,
		log:        log,
		logger:     logger.With("component", "policy.registry"),
	}, nil
}

// Register validates a definition and stores the policy in shadow mode with
// zero counters, appending its registration audit entry.
func (r *Registry) Register(ctx context.Context, def Definition) (Policy, error) {
	def.TriggerPattern = NormalizePattern(def.TriggerPattern)
	if def.TriggerPattern == "" {
		return Policy{}, &InvalidPolicyDefinitionError{Field: "trigger_pattern", Reason: "cannot be empty"}
	}
	if def.Action == "" {
		return Policy{}, &InvalidPolicyDefinitionError{Field: "action", Reason: "cannot be empty"}
	}

	var sign classifier.OutcomeSign
	switch def.ExpectedOutcomeSign {
	case string(classifier.OutcomePositive):
		sign = classifier.OutcomePositive
	case string(classifier.OutcomeNegative):
		sign = classifier.OutcomeNegative
	default:
		return Policy{}, &InvalidPolicyDefinitionError{
			Field:  "expected_outcome_sign",
			Reason: fmt.Sprintf("must be %q or %q", classifier.OutcomePositive, classifier.OutcomeNegative),
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	p := &Policy{
		ID:                  uuid.NewString(),
		Name:                def.Name,
		TriggerPattern:      def.TriggerPattern,
		Action:              def.Action,
		ExpectedOutcomeSign: sign,
		Mode:                ModeShadow,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	_, err := r.log.AppendModeChange(ctx, audit.ModeChangeRecord{
		PolicyID:            p.ID,
		To:                  string(ModeShadow),
		Automatic:           true,
		Reason:              "registered",
		Name:                p.Name,
		TriggerPattern:      p.TriggerPattern,
		Action:              p.Action,
		ExpectedOutcomeSign: string(p.ExpectedOutcomeSign),
	})
	if err != nil {
		return Policy{}, err
	}

	r.policies[p.ID] = p
	r.matchers[p.ID] = NewMatcher(p.TriggerPattern)

	r.logger.Info("policy registered",
		"policy_id", p.ID,
		"name", p.Name,
		"trigger_pattern", p.TriggerPattern,
		"action", p.Action,
	)
	return *p, nil
}

// Observe records one prediction-versus-outcome observation. It is the sole
// mutator of confidence; automatic promotion is evaluated after every call.
// Observations against killed policies are ignored.
func (r *Registry) Observe(ctx context.Context, policyID string, predicted, actual classifier.OutcomeSign) (Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.policies[policyID]
	if !ok {
		return Policy{}, &UnknownPolicyError{PolicyID: policyID}
	}
	if p.Mode == ModeKilled {
		return *p, nil
	}

	p.ObservationCount++
	if predicted == actual {
		p.CorrectPredictions++
	}
	p.UpdatedAt = time.Now().UTC()

	if from, to, due := r.duePromotion(p); due {
		entry, err := r.log.AppendModeChange(ctx, audit.ModeChangeRecord{
			PolicyID:  p.ID,
			From:      string(from),
			To:        string(to),
			Automatic: true,
			Reason: fmt.Sprintf("confidence %.3f over %d observations",
				p.Confidence(), p.ObservationCount),
		})
		if err != nil {
			// The counters already moved; surface the log failure so the
			// caller can halt.
			return *p, err
		}

		p.Mode = to
		r.logger.Info("policy promoted",
			"policy_id", p.ID,
			"from", from,
			"to", to,
			"confidence", p.Confidence(),
			"observations", p.ObservationCount,
			"sequence", entry.Sequence,
		)
	}

	return *p, nil
}

// duePromotion evaluates the automatic promotion gates for p.
func (r *Registry) duePromotion(p *Policy) (from, to Mode, due bool) {
	switch p.Mode {
	case ModeShadow:
		if p.ObservationCount >= r.thresholds.CandidateObservations &&
			p.Confidence() >= r.thresholds.CandidateConfidence {
			return ModeShadow, ModeCandidate, true
		}
	case ModeCandidate:
		if p.ObservationCount >= r.thresholds.PromotedObservations &&
			p.Confidence() >= r.thresholds.PromotedConfidence {
			return ModeCandidate, ModePromoted, true
		}
	}
	return "", "", false
}

// Kill force-sets the policy's mode to killed. Irreversible, allowed from
// any mode, and audit-logged as a manual override.
func (r *Registry) Kill(ctx context.Context, policyID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.policies[policyID]
	if !ok {
		return &UnknownPolicyError{PolicyID: policyID}
	}
	if p.Mode == ModeKilled {
		return nil
	}

	_, err := r.log.AppendModeChange(ctx, audit.ModeChangeRecord{
		PolicyID:  p.ID,
		From:      string(p.Mode),
		To:        string(ModeKilled),
		Automatic: false,
		Reason:    reason,
	})
	if err != nil {
		return err
	}

	from := p.Mode
	p.Mode = ModeKilled
	p.UpdatedAt = time.Now().UTC()

	r.logger.Warn("policy killed",
		"policy_id", p.ID,
		"from", from,
		"reason", reason,
	)
	return nil
}

// ForcePromote advances the policy exactly one step (shadow -> candidate or
// candidate -> promoted), ignoring thresholds. It is audit-logged as a
// manual override, distinct from automatic promotion.
func (r *Registry) ForcePromote(ctx context.Context, policyID, actorRef string) (Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.policies[policyID]
	if !ok {
		return Policy{}, &UnknownPolicyError{PolicyID: policyID}
	}

	var to Mode
	switch p.Mode {
	case ModeShadow:
		to = ModeCandidate
	case ModeCandidate:
		to = ModePromoted
	default:
		return Policy{}, fmt.Errorf("policy %q cannot be force-promoted from mode %q", policyID, p.Mode)
	}

	_, err := r.log.AppendModeChange(ctx, audit.ModeChangeRecord{
		PolicyID:  p.ID,
		From:      string(p.Mode),
		To:        string(to),
		Automatic: false,
		Reason:    fmt.Sprintf("force-promoted by %s", actorRef),
	})
	if err != nil {
		return Policy{}, err
	}

	from := p.Mode
	p.Mode = to
	p.UpdatedAt = time.Now().UTC()

	r.logger.Warn("policy force-promoted",
		"policy_id", p.ID,
		"from", from,
		"to", to,
		"actor_ref", actorRef,
	)
	return *p, nil
}

// Restore inserts a policy recovered from the audit log without writing a
// registration entry. Intended for startup hydration only.
func (r *Registry) Restore(p Policy) error {
	if p.ID == "" {
		return fmt.Errorf("policy id cannot be empty")
	}
	if p.TriggerPattern == "" {
		return fmt.Errorf("policy %q has empty trigger pattern", p.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	restored := p
	r.policies[p.ID] = &restored
	r.matchers[p.ID] = NewMatcher(p.TriggerPattern)
	return nil
}

// Match returns copies of all policies whose trigger pattern the event type
// satisfies, in no particular order. Killed policies are included; the
// caller decides whether to ignore them.
func (r *Registry) Match(eventType string) []Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Policy
	for id, matcher := range r.matchers {
		if matcher.Matches(eventType) {
			out = append(out, *r.policies[id])
		}
	}
	return out
}

// Get returns a copy of the policy.
func (r *Registry) Get(policyID string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.policies[policyID]
	if !ok {
		return Policy{}, &UnknownPolicyError{PolicyID: policyID}
	}
	return *p, nil
}

// List returns copies of all policies.
func (r *Registry) List() []Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Policy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, *p)
	}
	return out
}
