package policy

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"governor-hq/ganymede/pkg/audit"
	"governor-hq/ganymede/pkg/audit/storage"
	"governor-hq/ganymede/pkg/classifier"
)

func newTestRegistry(t *testing.T, thresholds Thresholds) (*Registry, *audit.Log) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	log, err := audit.New(storage.NewMemoryStorage(), logger)
	if err != nil {
		t.Fatalf("audit.New() failed: %v", err)
	}
	r, err := NewRegistry(log, thresholds, logger)
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}
	return r, log
}

func validDefinition() Definition {
	return Definition{
		Name:                "suspend on loss",
		TriggerPattern:      "deal.lost",
		Action:              "transition:suspended",
		ExpectedOutcomeSign: "negative",
	}
}

// TestRegistry_Register tests registration in shadow mode with zero counters.
func TestRegistry_Register(t *testing.T) {
	r, log := newTestRegistry(t, Thresholds{})
	ctx := context.Background()

	p, err := r.Register(ctx, validDefinition())
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if p.Mode != ModeShadow {
		t.Errorf("Mode = %q, want %q", p.Mode, ModeShadow)
	}
	if p.ObservationCount != 0 || p.CorrectPredictions != 0 {
		t.Errorf("counters = %d/%d, want 0/0", p.CorrectPredictions, p.ObservationCount)
	}
	if p.Confidence() != 0 {
		t.Errorf("Confidence() = %v, want 0", p.Confidence())
	}

	entries, err := log.Range(ctx, 1, 0)
	if err != nil {
		t.Fatalf("Range() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != audit.KindPolicyModeChanged {
		t.Fatalf("expected one mode change entry, got %+v", entries)
	}
	mc := entries[0].ModeChange
	if mc.From != "" || mc.To != string(ModeShadow) {
		t.Errorf("registration entry = %+v", mc)
	}
	if mc.TriggerPattern != "deal.lost" || mc.Action != "transition:suspended" {
		t.Errorf("registration entry missing definition: %+v", mc)
	}
}

// TestRegistry_RegisterValidation tests definition validation.
func TestRegistry_RegisterValidation(t *testing.T) {
	r, _ := newTestRegistry(t, Thresholds{})
	ctx := context.Background()

	tests := []struct {
		name string
		def  Definition
	}{
		{"empty trigger", Definition{Action: "notify", ExpectedOutcomeSign: "positive"}},
		{"blank trigger", Definition{TriggerPattern: "   ", Action: "notify", ExpectedOutcomeSign: "positive"}},
		{"empty action", Definition{TriggerPattern: "x", ExpectedOutcomeSign: "positive"}},
		{"bad sign", Definition{TriggerPattern: "x", Action: "notify", ExpectedOutcomeSign: "sideways"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Register(ctx, tt.def)
			var invalid *InvalidPolicyDefinitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidPolicyDefinitionError, got %v", err)
			}
		})
	}
}

// TestRegistry_ObserveAndPromotion tests that confidence accumulates and the
// promotion gates fire exactly when both sample size and confidence are met.
func TestRegistry_ObserveAndPromotion(t *testing.T) {
	r, _ := newTestRegistry(t, Thresholds{
		CandidateObservations: 4,
		CandidateConfidence:   0.75,
		PromotedObservations:  8,
		PromotedConfidence:    0.875,
	})
	ctx := context.Background()

	p, err := r.Register(ctx, validDefinition())
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	// Three correct observations: sample size below the gate, still shadow.
	for i := 0; i < 3; i++ {
		got, err := r.Observe(ctx, p.ID, classifier.OutcomeNegative, classifier.OutcomeNegative)
		if err != nil {
			t.Fatalf("Observe() failed: %v", err)
		}
		if got.Mode != ModeShadow {
			t.Fatalf("Mode after %d observations = %q, want shadow", i+1, got.Mode)
		}
	}

	// Fourth correct observation: 4/4 = 1.0 >= 0.75, promotes to candidate.
	got, err := r.Observe(ctx, p.ID, classifier.OutcomeNegative, classifier.OutcomeNegative)
	if err != nil {
		t.Fatalf("Observe() failed: %v", err)
	}
	if got.Mode != ModeCandidate {
		t.Fatalf("Mode = %q, want candidate", got.Mode)
	}

	// Four more correct: 8/8 = 1.0 >= 0.875, promotes to promoted.
	for i := 0; i < 4; i++ {
		got, err = r.Observe(ctx, p.ID, classifier.OutcomeNegative, classifier.OutcomeNegative)
		if err != nil {
			t.Fatalf("Observe() failed: %v", err)
		}
	}
	if got.Mode != ModePromoted {
		t.Fatalf("Mode = %q, want promoted", got.Mode)
	}
}

// TestRegistry_PromotionIsForwardOnly tests that a confidence drop after
// promotion never demotes the policy.
func TestRegistry_PromotionIsForwardOnly(t *testing.T) {
	r, _ := newTestRegistry(t, Thresholds{
		CandidateObservations: 2,
		CandidateConfidence:   0.5,
		PromotedObservations:  100,
		PromotedConfidence:    0.9,
	})
	ctx := context.Background()

	p, _ := r.Register(ctx, validDefinition())
	for i := 0; i < 2; i++ {
		if _, err := r.Observe(ctx, p.ID, classifier.OutcomeNegative, classifier.OutcomeNegative); err != nil {
			t.Fatalf("Observe() failed: %v", err)
		}
	}

	got, _ := r.Get(p.ID)
	if got.Mode != ModeCandidate {
		t.Fatalf("Mode = %q, want candidate", got.Mode)
	}

	// A run of wrong predictions drives confidence to 0.2; mode holds.
	for i := 0; i < 8; i++ {
		if _, err := r.Observe(ctx, p.ID, classifier.OutcomeNegative, classifier.OutcomePositive); err != nil {
			t.Fatalf("Observe() failed: %v", err)
		}
	}
	got, _ = r.Get(p.ID)
	if got.Mode != ModeCandidate {
		t.Errorf("Mode = %q, want candidate after confidence drop", got.Mode)
	}
	if got.Confidence() != 0.2 {
		t.Errorf("Confidence() = %v, want 0.2", got.Confidence())
	}
}

// TestRegistry_Kill tests that killing is idempotent and absorbing.
func TestRegistry_Kill(t *testing.T) {
	r, log := newTestRegistry(t, Thresholds{})
	ctx := context.Background()

	p, _ := r.Register(ctx, validDefinition())
	if err := r.Kill(ctx, p.ID, "misbehaving"); err != nil {
		t.Fatalf("Kill() failed: %v", err)
	}

	got, _ := r.Get(p.ID)
	if got.Mode != ModeKilled {
		t.Fatalf("Mode = %q, want killed", got.Mode)
	}

	// Observations against a killed policy are ignored.
	before := got.ObservationCount
	got, err := r.Observe(ctx, p.ID, classifier.OutcomeNegative, classifier.OutcomeNegative)
	if err != nil {
		t.Fatalf("Observe() failed: %v", err)
	}
	if got.ObservationCount != before {
		t.Errorf("ObservationCount = %d, want %d", got.ObservationCount, before)
	}

	// Killing again is a no-op, not an error, and writes no entry.
	seq := log.LastSequence()
	if err := r.Kill(ctx, p.ID, "again"); err != nil {
		t.Fatalf("second Kill() failed: %v", err)
	}
	if log.LastSequence() != seq {
		t.Error("idempotent kill wrote an audit entry")
	}

	// A killed policy cannot be force-promoted.
	if _, err := r.ForcePromote(ctx, p.ID, "operator:alice"); err == nil {
		t.Error("ForcePromote() on killed policy succeeded, want error")
	}
}

// TestRegistry_ForcePromote tests the single-step manual override.
func TestRegistry_ForcePromote(t *testing.T) {
	r, _ := newTestRegistry(t, Thresholds{})
	ctx := context.Background()

	p, _ := r.Register(ctx, validDefinition())

	got, err := r.ForcePromote(ctx, p.ID, "operator:alice")
	if err != nil {
		t.Fatalf("ForcePromote() failed: %v", err)
	}
	if got.Mode != ModeCandidate {
		t.Fatalf("Mode = %q, want candidate", got.Mode)
	}

	got, err = r.ForcePromote(ctx, p.ID, "operator:alice")
	if err != nil {
		t.Fatalf("ForcePromote() failed: %v", err)
	}
	if got.Mode != ModePromoted {
		t.Fatalf("Mode = %q, want promoted", got.Mode)
	}

	if _, err := r.ForcePromote(ctx, p.ID, "operator:alice"); err == nil {
		t.Error("ForcePromote() past promoted succeeded, want error")
	}
}

// TestRegistry_Match tests trigger matching across registered policies.
func TestRegistry_Match(t *testing.T) {
	r, _ := newTestRegistry(t, Thresholds{})
	ctx := context.Background()

	exact := validDefinition()
	prefix := Definition{
		Name:                "watch all deals",
		TriggerPattern:      "deal.*",
		Action:              "notify",
		ExpectedOutcomeSign: "positive",
	}
	other := Definition{
		Name:                "expiry watcher",
		TriggerPattern:      "entity.expired",
		Action:              "transition:expired",
		ExpectedOutcomeSign: "negative",
	}
	for _, def := range []Definition{exact, prefix, other} {
		if _, err := r.Register(ctx, def); err != nil {
			t.Fatalf("Register(%q) failed: %v", def.Name, err)
		}
	}

	matched := r.Match("deal.lost")
	if len(matched) != 2 {
		t.Fatalf("Match(deal.lost) returned %d policies, want 2", len(matched))
	}
	if len(r.Match("entity.expired")) != 1 {
		t.Error("Match(entity.expired) should return 1 policy")
	}
	if len(r.Match("unrelated")) != 0 {
		t.Error("Match(unrelated) should return no policies")
	}
}

// TestRegistry_RegisterNormalizesTriggerPattern tests that mixed-case
// patterns still match classified (lowercased) event types.
func TestRegistry_RegisterNormalizesTriggerPattern(t *testing.T) {
	r, _ := newTestRegistry(t, Thresholds{})
	ctx := context.Background()

	p, err := r.Register(ctx, Definition{
		Name:                "suspend on loss",
		TriggerPattern:      " Deal.Lost ",
		Action:              "transition:suspended",
		ExpectedOutcomeSign: "negative",
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if p.TriggerPattern != "deal.lost" {
		t.Errorf("TriggerPattern = %q, want normalized deal.lost", p.TriggerPattern)
	}
	if len(r.Match("deal.lost")) != 1 {
		t.Error("Match(deal.lost) misses the mixed-case registration")
	}

	prefix, err := r.Register(ctx, Definition{
		Name:                "watch all deals",
		TriggerPattern:      "DEAL.*",
		Action:              "notify",
		ExpectedOutcomeSign: "positive",
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if prefix.TriggerPattern != "deal.*" {
		t.Errorf("TriggerPattern = %q, want normalized deal.*", prefix.TriggerPattern)
	}
	if len(r.Match("deal.won")) != 1 {
		t.Error("Match(deal.won) misses the mixed-case prefix registration")
	}
}

// TestRegistry_UnknownPolicy tests error returns for unknown IDs.
func TestRegistry_UnknownPolicy(t *testing.T) {
	r, _ := newTestRegistry(t, Thresholds{})
	ctx := context.Background()

	var unknown *UnknownPolicyError
	if _, err := r.Observe(ctx, "missing", classifier.OutcomePositive, classifier.OutcomePositive); !errors.As(err, &unknown) {
		t.Errorf("Observe: expected UnknownPolicyError, got %v", err)
	}
	if err := r.Kill(ctx, "missing", ""); !errors.As(err, &unknown) {
		t.Errorf("Kill: expected UnknownPolicyError, got %v", err)
	}
	if _, err := r.Get("missing"); !errors.As(err, &unknown) {
		t.Errorf("Get: expected UnknownPolicyError, got %v", err)
	}
}
