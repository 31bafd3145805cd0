package rollout

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"governor-hq/ganymede/pkg/audit"
	"governor-hq/ganymede/pkg/audit/storage"
	"governor-hq/ganymede/pkg/blast"
	"governor-hq/ganymede/pkg/classifier"
	"governor-hq/ganymede/pkg/entity"
	"governor-hq/ganymede/pkg/policy"
	"governor-hq/ganymede/pkg/rollout/dedup"
)

type fixture struct {
	controller *Controller
	machine    *entity.Machine
	policies   *policy.Registry
	log        *audit.Log
}

// newFixture wires a controller over memory backends. Promotion thresholds
// are small so tests can cross the gates with a handful of events, and the
// blast thresholds make any set of 3+ linked entities high risk.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	log, err := audit.New(storage.NewMemoryStorage(), logger)
	if err != nil {
		t.Fatalf("audit.New() failed: %v", err)
	}
	machine, err := entity.NewMachine(log, logger)
	if err != nil {
		t.Fatalf("NewMachine() failed: %v", err)
	}
	policies, err := policy.NewRegistry(log, policy.Thresholds{
		CandidateObservations: 2,
		CandidateConfidence:   0.5,
		PromotedObservations:  4,
		PromotedConfidence:    0.75,
	}, logger)
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}
	simulator, err := blast.NewSimulator(machine, blast.Thresholds{
		HighAffectedCount:    3,
		HighMonetaryImpact:   100000,
		MediumAffectedCount:  2,
		MediumMonetaryImpact: 50000,
	})
	if err != nil {
		t.Fatalf("NewSimulator() failed: %v", err)
	}

	c, err := New(Deps{
		Classifier: classifier.New(classifier.Config{
			Tiers: map[string]string{
				"deal.lost": "critical",
				"deal.won":  "elevated",
			},
		}),
		Policies:  policies,
		Machine:   machine,
		Simulator: simulator,
		Log:       log,
		Dedup:     dedup.NewMemoryIndex(),
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return &fixture{controller: c, machine: machine, policies: policies, log: log}
}

func (f *fixture) registerEntity(t *testing.T, in entity.RegisterInput) entity.ManagedEntity {
	t.Helper()
	e, err := f.controller.RegisterEntity(context.Background(), in)
	if err != nil {
		t.Fatalf("RegisterEntity() failed: %v", err)
	}
	return e
}

func (f *fixture) registerPolicy(t *testing.T, def policy.Definition) policy.Policy {
	t.Helper()
	p, err := f.controller.RegisterPolicy(context.Background(), def)
	if err != nil {
		t.Fatalf("RegisterPolicy() failed: %v", err)
	}
	return p
}

// activate walks an entity from draft to active.
func (f *fixture) activate(t *testing.T, entityID string) {
	t.Helper()
	ctx := context.Background()
	for _, s := range []entity.State{entity.StateSubmitted, entity.StateApproved, entity.StateScheduled, entity.StateActive} {
		if _, err := f.controller.TransitionEntity(ctx, entityID, s, "operator:test", ""); err != nil {
			t.Fatalf("TransitionEntity(%q) failed: %v", s, err)
		}
	}
}

// drainAction pops one action request without blocking.
func drainAction(t *testing.T, c *Controller) (ActionRequest, bool) {
	t.Helper()
	select {
	case req := <-c.Actions():
		return req, true
	default:
		return ActionRequest{}, false
	}
}

func suspendOnLoss() policy.Definition {
	return policy.Definition{
		Name:                "suspend on loss",
		TriggerPattern:      "deal.lost",
		Action:              "transition:suspended",
		ExpectedOutcomeSign: "negative",
	}
}

// TestController_EmitEventValidation tests input validation.
func TestController_EmitEventValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var invalid *InvalidEventError
	if _, err := f.controller.EmitEvent(ctx, OutcomeEvent{EntityID: "e"}); !errors.As(err, &invalid) {
		t.Errorf("missing type: expected InvalidEventError, got %v", err)
	}
	if _, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost"}); !errors.As(err, &invalid) {
		t.Errorf("missing entity_id: expected InvalidEventError, got %v", err)
	}
}

// TestController_DuplicateEventsAbsorbed tests exactly-once processing by
// event ID.
func TestController_DuplicateEventsAbsorbed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.registerPolicy(t, suspendOnLoss())
	e := f.registerEntity(t, entity.RegisterInput{CustomerRef: "c"})

	ev := OutcomeEvent{ID: "ev-1", Type: "deal.lost", EntityID: e.ID}
	first, err := f.controller.EmitEvent(ctx, ev)
	if err != nil {
		t.Fatalf("EmitEvent() failed: %v", err)
	}
	if first.Duplicate {
		t.Fatal("first emission reported as duplicate")
	}
	seqAfterFirst := f.log.LastSequence()

	second, err := f.controller.EmitEvent(ctx, ev)
	if err != nil {
		t.Fatalf("EmitEvent() failed: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("second emission not reported as duplicate")
	}
	if len(second.Decisions) != 0 {
		t.Errorf("duplicate produced %d decisions, want 0", len(second.Decisions))
	}
	if f.log.LastSequence() != seqAfterFirst {
		t.Error("duplicate wrote audit entries")
	}

	p, _ := f.policies.Get(f.controller.Policies()[0].ID)
	if p.ObservationCount != 1 {
		t.Errorf("ObservationCount = %d, want 1 (duplicate must not observe)", p.ObservationCount)
	}

	snap := f.controller.Snapshot()
	if snap.Stats.EventsProcessed != 1 || snap.Stats.EventsDuplicate != 1 {
		t.Errorf("stats = %+v, want 1 processed / 1 duplicate", snap.Stats)
	}
}

// TestController_ShadowRecordsOnly tests that shadow policies observe without
// acting.
func TestController_ShadowRecordsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, suspendOnLoss())
	e := f.registerEntity(t, entity.RegisterInput{CustomerRef: "c"})
	f.activate(t, e.ID)

	result, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: e.ID})
	if err != nil {
		t.Fatalf("EmitEvent() failed: %v", err)
	}
	if len(result.Decisions) != 1 {
		t.Fatalf("got %d decisions, want 1", len(result.Decisions))
	}
	d := result.Decisions[0]
	if d.Outcome != OutcomeDeferred {
		t.Errorf("Outcome = %q, want deferred", d.Outcome)
	}
	if !strings.Contains(d.Reason, "shadow") {
		t.Errorf("Reason = %q, want shadow explanation", d.Reason)
	}

	got, _ := f.controller.Entity(e.ID)
	if got.State != entity.StateActive {
		t.Errorf("shadow policy changed entity state to %q", got.State)
	}
	if _, ok := drainAction(t, f.controller); ok {
		t.Error("shadow policy enqueued an action")
	}

	updated, _ := f.policies.Get(p.ID)
	if updated.ObservationCount != 1 {
		t.Errorf("ObservationCount = %d, want 1", updated.ObservationCount)
	}
}

// TestController_AutomaticPromotion tests that correct observations walk a
// policy through candidate to promoted.
func TestController_AutomaticPromotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, suspendOnLoss())
	e := f.registerEntity(t, entity.RegisterInput{CustomerRef: "c"})
	f.activate(t, e.ID)

	// Two correct observations cross the candidate gate (2 obs, 0.5).
	for i := 0; i < 2; i++ {
		if _, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: e.ID}); err != nil {
			t.Fatalf("EmitEvent() failed: %v", err)
		}
	}
	got, _ := f.policies.Get(p.ID)
	if got.Mode != policy.ModeCandidate {
		t.Fatalf("Mode after 2 observations = %q, want candidate", got.Mode)
	}

	// The candidate acts: the second candidate event suspends the entity, so
	// re-activate between events to keep the transition legal.
	for i := 0; i < 2; i++ {
		if _, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: e.ID}); err != nil {
			t.Fatalf("EmitEvent() failed: %v", err)
		}
		if _, err := f.controller.TransitionEntity(ctx, e.ID, entity.StateActive, "operator:test", "resume"); err != nil {
			t.Fatalf("TransitionEntity(active) failed: %v", err)
		}
	}
	got, _ = f.policies.Get(p.ID)
	if got.Mode != policy.ModePromoted {
		t.Fatalf("Mode after 4 observations = %q, want promoted", got.Mode)
	}

	snap := f.controller.Snapshot()
	if snap.Stats.PoliciesPromoted != 2 {
		t.Errorf("PoliciesPromoted = %d, want 2", snap.Stats.PoliciesPromoted)
	}
}

// TestController_CandidateParksHighRiskActions tests the blast gate on
// candidate policies and operator approval.
func TestController_CandidateParksHighRiskActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, suspendOnLoss())
	if _, err := f.controller.ForcePromotePolicy(ctx, p.ID, "operator:alice"); err != nil {
		t.Fatalf("ForcePromotePolicy() failed: %v", err)
	}

	// Three entities share a producer, so the blast set hits the high band.
	target := f.registerEntity(t, entity.RegisterInput{CustomerRef: "c-1", ProducerRef: "prod-A"})
	f.registerEntity(t, entity.RegisterInput{CustomerRef: "c-2", ProducerRef: "prod-A"})
	f.registerEntity(t, entity.RegisterInput{CustomerRef: "c-3", ProducerRef: "prod-A"})
	f.activate(t, target.ID)

	result, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: target.ID})
	if err != nil {
		t.Fatalf("EmitEvent() failed: %v", err)
	}
	d := result.Decisions[0]
	if d.Outcome != OutcomeDeferred || d.DeferredID == "" {
		t.Fatalf("decision = %+v, want deferred with ID", d)
	}
	if d.Preview == nil || d.Preview.RiskLevel != blast.RiskHigh {
		t.Fatalf("preview = %+v, want high risk", d.Preview)
	}

	got, _ := f.controller.Entity(target.ID)
	if got.State != entity.StateActive {
		t.Errorf("parked action changed entity state to %q", got.State)
	}
	if _, ok := drainAction(t, f.controller); ok {
		t.Error("parked action was enqueued")
	}

	parked := f.controller.ListDeferred()
	if len(parked) != 1 || parked[0].ID != d.DeferredID {
		t.Fatalf("ListDeferred() = %+v, want the parked action", parked)
	}

	// Approval executes despite the still-high risk.
	approved, err := f.controller.Approve(ctx, d.DeferredID, "operator:alice")
	if err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	if approved.Outcome != OutcomeExecuted {
		t.Fatalf("approved outcome = %q, want executed", approved.Outcome)
	}
	if !strings.Contains(approved.Reason, "operator:alice") {
		t.Errorf("Reason = %q, want approver recorded", approved.Reason)
	}

	got, _ = f.controller.Entity(target.ID)
	if got.State != entity.StateSuspended {
		t.Errorf("State = %q, want suspended after approval", got.State)
	}
	if req, ok := drainAction(t, f.controller); !ok || req.Action != "transition:suspended" {
		t.Errorf("action request = %+v, want transition:suspended", req)
	} else if req.EventID != result.EventID {
		t.Errorf("action EventID = %q, want triggering event %q", req.EventID, result.EventID)
	}
	if len(f.controller.ListDeferred()) != 0 {
		t.Error("approved action still parked")
	}

	// The deferred ID is consumed.
	var unknown *UnknownDeferredActionError
	if _, err := f.controller.Approve(ctx, d.DeferredID, "operator:alice"); !errors.As(err, &unknown) {
		t.Errorf("re-approval: expected UnknownDeferredActionError, got %v", err)
	}
}

// TestController_DismissDeferred tests discarding a parked action.
func TestController_DismissDeferred(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, suspendOnLoss())
	if _, err := f.controller.ForcePromotePolicy(ctx, p.ID, "operator:alice"); err != nil {
		t.Fatalf("ForcePromotePolicy() failed: %v", err)
	}
	target := f.registerEntity(t, entity.RegisterInput{CustomerRef: "c-1", ProducerRef: "prod-A"})
	f.registerEntity(t, entity.RegisterInput{CustomerRef: "c-2", ProducerRef: "prod-A"})
	f.registerEntity(t, entity.RegisterInput{CustomerRef: "c-3", ProducerRef: "prod-A"})
	f.activate(t, target.ID)

	result, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: target.ID})
	if err != nil {
		t.Fatalf("EmitEvent() failed: %v", err)
	}
	id := result.Decisions[0].DeferredID

	if err := f.controller.Dismiss(id, "operator:bob"); err != nil {
		t.Fatalf("Dismiss() failed: %v", err)
	}
	got, _ := f.controller.Entity(target.ID)
	if got.State != entity.StateActive {
		t.Errorf("dismissed action changed entity state to %q", got.State)
	}

	var unknown *UnknownDeferredActionError
	if err := f.controller.Dismiss(id, "operator:bob"); !errors.As(err, &unknown) {
		t.Errorf("expected UnknownDeferredActionError, got %v", err)
	}
}

// TestController_ApproveAfterKillRejects tests that a kill lands even on
// actions parked before it.
func TestController_ApproveAfterKillRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, suspendOnLoss())
	if _, err := f.controller.ForcePromotePolicy(ctx, p.ID, "operator:alice"); err != nil {
		t.Fatalf("ForcePromotePolicy() failed: %v", err)
	}
	target := f.registerEntity(t, entity.RegisterInput{CustomerRef: "c-1", ProducerRef: "prod-A"})
	f.registerEntity(t, entity.RegisterInput{CustomerRef: "c-2", ProducerRef: "prod-A"})
	f.registerEntity(t, entity.RegisterInput{CustomerRef: "c-3", ProducerRef: "prod-A"})
	f.activate(t, target.ID)

	result, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: target.ID})
	if err != nil {
		t.Fatalf("EmitEvent() failed: %v", err)
	}
	id := result.Decisions[0].DeferredID

	if err := f.controller.KillPolicy(ctx, p.ID, "rollback"); err != nil {
		t.Fatalf("KillPolicy() failed: %v", err)
	}

	d, err := f.controller.Approve(ctx, id, "operator:alice")
	if err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	if d.Outcome != OutcomeRejected {
		t.Errorf("Outcome = %q, want rejected", d.Outcome)
	}
	got, _ := f.controller.Entity(target.ID)
	if got.State != entity.StateActive {
		t.Errorf("killed policy's action still executed: state %q", got.State)
	}
}

// TestController_PromotedExecutes tests that promoted policies act with the
// preview recorded but not gating.
func TestController_PromotedExecutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, suspendOnLoss())
	for i := 0; i < 2; i++ {
		if _, err := f.controller.ForcePromotePolicy(ctx, p.ID, "operator:alice"); err != nil {
			t.Fatalf("ForcePromotePolicy() failed: %v", err)
		}
	}

	// High-risk neighborhood; promoted mode executes anyway.
	target := f.registerEntity(t, entity.RegisterInput{CustomerRef: "c-1", ProducerRef: "prod-A"})
	f.registerEntity(t, entity.RegisterInput{CustomerRef: "c-2", ProducerRef: "prod-A"})
	f.registerEntity(t, entity.RegisterInput{CustomerRef: "c-3", ProducerRef: "prod-A"})
	f.activate(t, target.ID)

	result, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: target.ID})
	if err != nil {
		t.Fatalf("EmitEvent() failed: %v", err)
	}
	d := result.Decisions[0]
	if d.Outcome != OutcomeExecuted {
		t.Fatalf("Outcome = %q, want executed: %+v", d.Outcome, d)
	}
	if d.Preview == nil || d.Preview.RiskLevel != blast.RiskHigh {
		t.Errorf("preview = %+v, want recorded high risk", d.Preview)
	}

	got, _ := f.controller.Entity(target.ID)
	if got.State != entity.StateSuspended {
		t.Errorf("State = %q, want suspended", got.State)
	}
	if req, ok := drainAction(t, f.controller); !ok || req.PolicyID != p.ID {
		t.Errorf("action request = %+v, want one from policy %s", req, p.ID)
	}
}

// TestController_IllegalTransitionRejected tests that the lifecycle table
// still gates promoted actions.
func TestController_IllegalTransitionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, suspendOnLoss())
	for i := 0; i < 2; i++ {
		if _, err := f.controller.ForcePromotePolicy(ctx, p.ID, "operator:alice"); err != nil {
			t.Fatalf("ForcePromotePolicy() failed: %v", err)
		}
	}
	// Entity left in draft: draft -> suspended is illegal.
	e := f.registerEntity(t, entity.RegisterInput{CustomerRef: "c"})

	result, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: e.ID})
	if err != nil {
		t.Fatalf("EmitEvent() failed: %v", err)
	}
	d := result.Decisions[0]
	if d.Outcome != OutcomeRejected {
		t.Fatalf("Outcome = %q, want rejected", d.Outcome)
	}

	got, _ := f.controller.Entity(e.ID)
	if got.State != entity.StateDraft {
		t.Errorf("State = %q, want draft", got.State)
	}
	if _, ok := drainAction(t, f.controller); ok {
		t.Error("rejected action was enqueued")
	}

	snap := f.controller.Snapshot()
	if snap.Stats.ActionsRejected != 1 {
		t.Errorf("ActionsRejected = %d, want 1", snap.Stats.ActionsRejected)
	}
}

// TestController_MalformedTransitionActionRejected tests actions naming a
// state outside the lifecycle table.
func TestController_MalformedTransitionActionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, policy.Definition{
		Name:                "broken action",
		TriggerPattern:      "deal.lost",
		Action:              "transition:warp",
		ExpectedOutcomeSign: "negative",
	})
	if _, err := f.controller.ForcePromotePolicy(ctx, p.ID, "operator:alice"); err != nil {
		t.Fatalf("ForcePromotePolicy() failed: %v", err)
	}
	e := f.registerEntity(t, entity.RegisterInput{CustomerRef: "c"})

	result, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: e.ID})
	if err != nil {
		t.Fatalf("EmitEvent() failed: %v", err)
	}
	d := result.Decisions[0]
	if d.Outcome != OutcomeRejected || !strings.Contains(d.Reason, "transition:warp") {
		t.Errorf("decision = %+v, want rejection naming the action", d)
	}
}

// TestController_NonTransitionActionSkipsBlastCheck tests that plain actions
// execute without a preview.
func TestController_NonTransitionActionSkipsBlastCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, policy.Definition{
		Name:                "page the owner",
		TriggerPattern:      "deal.lost",
		Action:              "notify",
		ExpectedOutcomeSign: "negative",
	})
	if _, err := f.controller.ForcePromotePolicy(ctx, p.ID, "operator:alice"); err != nil {
		t.Fatalf("ForcePromotePolicy() failed: %v", err)
	}
	e := f.registerEntity(t, entity.RegisterInput{CustomerRef: "c"})

	result, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: e.ID})
	if err != nil {
		t.Fatalf("EmitEvent() failed: %v", err)
	}
	d := result.Decisions[0]
	if d.Outcome != OutcomeExecuted {
		t.Fatalf("Outcome = %q, want executed", d.Outcome)
	}
	if d.Preview != nil {
		t.Errorf("non-transition action carried a preview: %+v", d.Preview)
	}
	if req, ok := drainAction(t, f.controller); !ok || req.Action != "notify" {
		t.Errorf("action request = %+v, want notify", req)
	}
}

// TestController_KilledPoliciesIgnored tests that killed policies neither
// observe nor decide.
func TestController_KilledPoliciesIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, suspendOnLoss())
	if err := f.controller.KillPolicy(ctx, p.ID, "rollback"); err != nil {
		t.Fatalf("KillPolicy() failed: %v", err)
	}
	e := f.registerEntity(t, entity.RegisterInput{CustomerRef: "c"})

	result, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: e.ID})
	if err != nil {
		t.Fatalf("EmitEvent() failed: %v", err)
	}
	if len(result.Decisions) != 0 {
		t.Errorf("killed policy produced decisions: %+v", result.Decisions)
	}

	got, _ := f.policies.Get(p.ID)
	if got.ObservationCount != 0 {
		t.Errorf("ObservationCount = %d, want 0", got.ObservationCount)
	}
}

// TestController_EventForUnknownEntityStillObserves tests that policies learn
// from events the entity machine cannot place.
func TestController_EventForUnknownEntityStillObserves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, suspendOnLoss())

	result, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: "nobody"})
	if err != nil {
		t.Fatalf("EmitEvent() failed: %v", err)
	}
	if result.Duplicate {
		t.Fatal("event reported as duplicate")
	}

	got, _ := f.policies.Get(p.ID)
	if got.ObservationCount != 1 {
		t.Errorf("ObservationCount = %d, want 1", got.ObservationCount)
	}
}

// TestController_Snapshot tests the point-in-time view.
func TestController_Snapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, suspendOnLoss())
	e := f.registerEntity(t, entity.RegisterInput{CustomerRef: "c"})
	if _, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: e.ID}); err != nil {
		t.Fatalf("EmitEvent() failed: %v", err)
	}

	snap := f.controller.Snapshot()
	if len(snap.Entities) != 1 {
		t.Fatalf("Entities = %+v, want 1 entity", snap.Entities)
	}
	se := snap.Entities[0]
	if se.ID != e.ID || se.State != entity.StateDraft || se.Verdict.SampleCount != 1 {
		t.Errorf("snapshot entity = %+v, want %s in draft with 1 sample", se, e.ID)
	}
	if len(snap.Policies) != 1 {
		t.Fatalf("Policies = %+v, want 1 policy", snap.Policies)
	}
	sp := snap.Policies[0]
	if sp.ID != p.ID || sp.Mode != policy.ModeShadow || sp.ObservationCount != 1 {
		t.Errorf("snapshot policy = %+v, want %s in shadow with 1 observation", sp, p.ID)
	}
	if snap.PoliciesByMode[policy.ModeShadow] != 1 {
		t.Errorf("PoliciesByMode = %+v, want one shadow policy", snap.PoliciesByMode)
	}
	if snap.LastSequence != f.log.LastSequence() {
		t.Errorf("LastSequence = %d, want %d", snap.LastSequence, f.log.LastSequence())
	}
	if snap.Halted {
		t.Error("snapshot reports halted on a healthy log")
	}
	if snap.TakenAt.IsZero() {
		t.Error("TakenAt is zero")
	}
}

// TestController_CloseDropsLaterActions tests that Close is idempotent and
// that actions executed afterwards are dropped instead of sent on the
// closed channel.
func TestController_CloseDropsLaterActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, suspendOnLoss())
	for i := 0; i < 2; i++ {
		if _, err := f.controller.ForcePromotePolicy(ctx, p.ID, "operator:alice"); err != nil {
			t.Fatalf("ForcePromotePolicy() failed: %v", err)
		}
	}
	e := f.registerEntity(t, entity.RegisterInput{CustomerRef: "c-1"})
	f.activate(t, e.ID)

	if err := f.controller.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	result, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: "deal.lost", EntityID: e.ID})
	if err != nil {
		t.Fatalf("EmitEvent() after Close failed: %v", err)
	}
	if result.Decisions[0].Outcome != OutcomeExecuted {
		t.Fatalf("decision = %+v, want executed", result.Decisions[0])
	}
	if got := f.controller.Snapshot().Stats.ActionsDropped; got != 1 {
		t.Errorf("ActionsDropped = %d, want 1", got)
	}

	if err := f.controller.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
}

// TestController_RebuildMatchesLiveState tests the replay property: folding
// the audit log from empty reproduces the live engine state.
func TestController_RebuildMatchesLiveState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.registerPolicy(t, suspendOnLoss())
	e := f.registerEntity(t, entity.RegisterInput{CustomerRef: "customer-7", MonetaryValue: 2500})
	f.activate(t, e.ID)

	// Mixed outcomes: deal.lost is correct for this policy, deal.won is not.
	events := []string{"deal.lost", "deal.won", "deal.lost"}
	for _, typ := range events {
		if _, err := f.controller.EmitEvent(ctx, OutcomeEvent{Type: typ, EntityID: e.ID}); err != nil {
			t.Fatalf("EmitEvent(%q) failed: %v", typ, err)
		}
	}

	state, err := audit.Rebuild(ctx, f.log)
	if err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}

	liveEntity, _ := f.controller.Entity(e.ID)
	re, ok := state.Entities[e.ID]
	if !ok {
		t.Fatal("entity missing from rebuilt state")
	}
	if re.State != string(liveEntity.State) {
		t.Errorf("rebuilt state %q != live state %q", re.State, liveEntity.State)
	}
	if re.CustomerRef != "customer-7" || re.MonetaryValue != 2500 {
		t.Errorf("rebuilt identity = %+v", re)
	}
	if re.SampleCount != liveEntity.Verdict.SampleCount {
		t.Errorf("rebuilt SampleCount = %d, live %d", re.SampleCount, liveEntity.Verdict.SampleCount)
	}

	livePolicy, _ := f.policies.Get(p.ID)
	rp, ok := state.Policies[p.ID]
	if !ok {
		t.Fatal("policy missing from rebuilt state")
	}
	if rp.Mode != string(livePolicy.Mode) {
		t.Errorf("rebuilt mode %q != live mode %q", rp.Mode, livePolicy.Mode)
	}
	if rp.ObservationCount != livePolicy.ObservationCount || rp.CorrectPredictions != livePolicy.CorrectPredictions {
		t.Errorf("rebuilt counters %d/%d != live %d/%d",
			rp.CorrectPredictions, rp.ObservationCount,
			livePolicy.CorrectPredictions, livePolicy.ObservationCount)
	}
}
