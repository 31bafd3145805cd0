package rollout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"governor-hq/ganymede/pkg/audit"
	"governor-hq/ganymede/pkg/blast"
	"governor-hq/ganymede/pkg/classifier"
	"governor-hq/ganymede/pkg/entity"
	"governor-hq/ganymede/pkg/policy"
	"governor-hq/ganymede/pkg/rollout/dedup"
	"governor-hq/ganymede/pkg/telemetry/metrics"
)

// transitionActionPrefix marks actions that request an entity lifecycle
// transition and therefore require a blast-radius check before executing.
const transitionActionPrefix = "transition:"

// Deps are the components a Controller is composed from. Classifier,
// Policies, Machine, Simulator, Log, and Dedup are required; Metrics and
// Logger may be nil.
type Deps struct {
	Classifier *classifier.Classifier
	Policies   *policy.Registry
	Machine    *entity.Machine
	Simulator  *blast.Simulator
	Log        *audit.Log
	Dedup      dedup.Index
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	// ActionQueueSize is the outbound action channel capacity.
	// Default: 256.
	ActionQueueSize int
}

// Controller drives the rollout pipeline. Event processing is serialized by
// a single mutex so each event's audit entries are contiguous; reads
// (snapshots, listings) go straight to the underlying components.
type Controller struct {
	classifier *classifier.Classifier
	policies   *policy.Registry
	machine    *entity.Machine
	simulator  *blast.Simulator
	log        *audit.Log
	dedup      dedup.Index
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu       sync.Mutex
	deferred map[string]*DeferredAction
	stats    Stats
	closed   bool

	actions chan ActionRequest
}

// New creates a controller from its component dependencies.
func New(deps Deps) (*Controller, error) {
	if deps.Classifier == nil {
		return nil, fmt.Errorf("classifier cannot be nil")
	}
	if deps.Policies == nil {
		return nil, fmt.Errorf("policy registry cannot be nil")
	}
	if deps.Machine == nil {
		return nil, fmt.Errorf("entity machine cannot be nil")
	}
	if deps.Simulator == nil {
		return nil, fmt.Errorf("blast simulator cannot be nil")
	}
	if deps.Log == nil {
		return nil, fmt.Errorf("audit log cannot be nil")
	}
	if deps.Dedup == nil {
		return nil, fmt.Errorf("dedup index cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.ActionQueueSize <= 0 {
		deps.ActionQueueSize = 256
	}

	return &Controller{
		classifier: deps.Classifier,
		policies:   deps.Policies,
		machine:    deps.Machine,
		simulator:  deps.Simulator,
		log:        deps.Log,
		dedup:      deps.Dedup,
		metrics:    deps.Metrics,
		logger:     deps.Logger.With("component", "rollout.controller"),
		deferred:   make(map[string]*DeferredAction),
		actions:    make(chan ActionRequest, deps.ActionQueueSize),
	}, nil
}

// EmitEvent runs one outcome event through the full pipeline. Duplicate
// event IDs are absorbed without side effects. A halted audit log refuses
// the event entirely.
func (c *Controller) EmitEvent(ctx context.Context, ev OutcomeEvent) (EventResult, error) {
	if ev.Type == "" {
		return EventResult{}, &InvalidEventError{Field: "type", Reason: "cannot be empty"}
	}
	if ev.EntityID == "" {
		return EventResult{}, &InvalidEventError{Field: "entity_id", Reason: "cannot be empty"}
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.EmittedAt.IsZero() {
		ev.EmittedAt = time.Now().UTC()
	}

	if c.log.Corrupt() {
		return EventResult{}, audit.ErrLogHalted
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result := EventResult{EventID: ev.ID}
	result.Trace = append(result.Trace, step(StageReceived, ""))

	seen, err := c.dedup.Seen(ctx, ev.ID)
	if err != nil {
		return EventResult{}, fmt.Errorf("dedup lookup for event %q: %w", ev.ID, err)
	}
	if seen {
		c.stats.EventsDuplicate++
		c.metrics.EngineOrNil().RecordEvent(true)
		c.logger.Debug("duplicate event absorbed", "event_id", ev.ID)
		result.Duplicate = true
		return result, nil
	}

	class := c.classifier.Classify(ev.Type, ev.Payload)
	result.Classification = class
	result.Trace = append(result.Trace, step(StageClassified, string(class.Tier)))

	// Killed policies still match but never observe or act.
	var matched []policy.Policy
	for _, p := range c.policies.Match(class.Type) {
		if p.Mode != policy.ModeKilled {
			matched = append(matched, p)
		}
	}
	result.Trace = append(result.Trace, step(StageMatched, fmt.Sprintf("%d policies", len(matched))))

	observations := make([]audit.ObservationRecord, 0, len(matched))
	for _, p := range matched {
		observations = append(observations, audit.ObservationRecord{
			PolicyID:  p.ID,
			Predicted: string(p.ExpectedOutcomeSign),
			Actual:    string(class.Outcome),
			Correct:   p.ExpectedOutcomeSign == class.Outcome,
		})
	}

	entry, err := c.log.AppendEvent(ctx, audit.EventRecord{
		EventID:      ev.ID,
		Type:         class.Type,
		Tier:         string(class.Tier),
		Outcome:      string(class.Outcome),
		EntityID:     ev.EntityID,
		EmittedAt:    ev.EmittedAt,
		Payload:      ev.Payload,
		Observations: observations,
	})
	if err != nil {
		return EventResult{}, err
	}
	result.Sequence = entry.Sequence
	c.metrics.AuditOrNil().RecordEntry(string(entry.Kind), entry.Sequence)

	if err := c.dedup.Mark(ctx, ev.ID); err != nil {
		// The event is already committed to the log; a dedup write failure
		// only risks reprocessing, not divergence.
		c.logger.Warn("dedup mark failed", "event_id", ev.ID, "error", err)
	}

	// Events against unknown entities still observe policies; the verdict
	// update simply has no entity to land on.
	if err := c.machine.RecordOutcome(ev.EntityID, class.Outcome == classifier.OutcomePositive); err != nil {
		var unknown *entity.UnknownEntityError
		if !errors.As(err, &unknown) {
			return result, err
		}
	}

	for i, p := range matched {
		obs := observations[i]
		updated, err := c.policies.Observe(ctx, p.ID, classifier.OutcomeSign(obs.Predicted), classifier.OutcomeSign(obs.Actual))
		if err != nil {
			return result, err
		}
		c.metrics.PolicyOrNil().RecordObservation(obs.Correct)
		result.Trace = append(result.Trace, step(StageConfidenceUpdated,
			fmt.Sprintf("policy %s confidence %.3f", updated.ID, updated.Confidence())))

		if updated.Mode != p.Mode {
			c.stats.PoliciesPromoted++
			c.metrics.PolicyOrNil().RecordPromotion(string(updated.Mode), "automatic")
			c.refreshModeGauge()
		}

		decision := c.decide(ctx, updated, ev, &result)
		result.Decisions = append(result.Decisions, decision)
		c.metrics.EngineOrNil().RecordDecision(string(decision.Mode), string(decision.Outcome))
	}

	c.stats.EventsProcessed++
	c.metrics.EngineOrNil().RecordEvent(false)
	return result, nil
}

// decide produces one policy's decision for the event, running the blast
// check and executing or parking the action as the policy's mode allows.
// The decision mode is the policy's mode after this event's observation.
func (c *Controller) decide(ctx context.Context, p policy.Policy, ev OutcomeEvent, result *EventResult) Decision {
	d := Decision{
		PolicyID:   p.ID,
		PolicyName: p.Name,
		Mode:       p.Mode,
		Action:     p.Action,
	}
	result.Trace = append(result.Trace, step(StageDecided, string(p.Mode)))

	if p.Mode == policy.ModeShadow {
		d.Outcome = OutcomeDeferred
		d.Reason = "shadow mode records prediction only"
		result.Trace = append(result.Trace, step(StageDeferred, d.Reason))
		return d
	}

	if strings.HasPrefix(p.Action, transitionActionPrefix) {
		if _, ok := parseTransitionAction(p.Action); !ok {
			c.stats.ActionsRejected++
			d.Outcome = OutcomeRejected
			d.Reason = fmt.Sprintf("unknown target state in action %q", p.Action)
			result.Trace = append(result.Trace, step(StageRejected, d.Reason))
			return d
		}
	}

	target, isTransition := parseTransitionAction(p.Action)
	if isTransition {
		report, err := c.simulator.Preview(ev.EntityID, target)
		if err != nil {
			c.stats.ActionsRejected++
			d.Outcome = OutcomeRejected
			d.Reason = fmt.Sprintf("blast preview failed: %v", err)
			result.Trace = append(result.Trace, step(StageRejected, d.Reason))
			return d
		}
		d.Preview = &report
		c.metrics.EngineOrNil().RecordPreview(string(report.RiskLevel))
		result.Trace = append(result.Trace, step(StageBlastChecked, string(report.RiskLevel)))

		if p.Mode == policy.ModeCandidate && report.RiskLevel == blast.RiskHigh {
			parked := &DeferredAction{
				ID:        uuid.NewString(),
				PolicyID:  p.ID,
				Action:    p.Action,
				EntityID:  ev.EntityID,
				EventID:   ev.ID,
				Preview:   report,
				CreatedAt: time.Now().UTC(),
			}
			c.deferred[parked.ID] = parked
			c.stats.ActionsDeferred++

			d.Outcome = OutcomeDeferred
			d.Reason = "high blast risk, parked for approval"
			d.DeferredID = parked.ID
			result.Trace = append(result.Trace, step(StageDeferred, d.Reason))

			c.logger.Info("action parked for approval",
				"deferred_id", parked.ID,
				"policy_id", p.ID,
				"entity_id", ev.EntityID,
				"risk_level", report.RiskLevel,
			)
			return d
		}
	}

	return c.execute(ctx, d, p, ev.EntityID, ev.ID, target, isTransition, result)
}

// execute carries out an allowed action: a lifecycle transition when the
// action requests one, and in every case an outbound action request.
func (c *Controller) execute(ctx context.Context, d Decision, p policy.Policy, entityID, eventID string, target entity.State, isTransition bool, result *EventResult) Decision {
	if isTransition {
		_, err := c.machine.Transition(ctx, entityID, target, "policy:"+p.ID, "action "+p.Action)
		if err != nil {
			c.stats.ActionsRejected++
			d.Outcome = OutcomeRejected
			d.Reason = err.Error()
			if result != nil {
				result.Trace = append(result.Trace, step(StageRejected, d.Reason))
			}
			c.logger.Warn("action rejected",
				"policy_id", p.ID,
				"entity_id", entityID,
				"action", p.Action,
				"error", err,
			)
			return d
		}
	}

	c.enqueue(ActionRequest{
		Action:   p.Action,
		EntityID: entityID,
		PolicyID: p.ID,
		EventID:  eventID,
	})

	c.stats.ActionsExecuted++
	d.Outcome = OutcomeExecuted
	if result != nil {
		result.Trace = append(result.Trace, step(StageExecuted, p.Action))
	}
	return d
}

// enqueue hands an action request to the outbound channel without blocking
// the pipeline; a full queue drops the request and counts the drop. Called
// with c.mu held, so the closed flag cannot change underneath the send.
func (c *Controller) enqueue(req ActionRequest) {
	if c.closed {
		c.stats.ActionsDropped++
		c.metrics.EngineOrNil().RecordActionDropped()
		c.logger.Warn("controller closed, dropping action request",
			"action", req.Action,
			"entity_id", req.EntityID,
			"policy_id", req.PolicyID,
		)
		return
	}
	select {
	case c.actions <- req:
		c.metrics.EngineOrNil().RecordActionEnqueued()
	default:
		c.stats.ActionsDropped++
		c.metrics.EngineOrNil().RecordActionDropped()
		c.logger.Warn("action queue full, dropping request",
			"action", req.Action,
			"entity_id", req.EntityID,
			"policy_id", req.PolicyID,
		)
	}
}

// Actions is the outbound channel of executed action requests for
// downstream effectors.
func (c *Controller) Actions() <-chan ActionRequest {
	return c.actions
}

// ListDeferred returns the actions currently awaiting approval.
func (c *Controller) ListDeferred() []DeferredAction {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]DeferredAction, 0, len(c.deferred))
	for _, d := range c.deferred {
		out = append(out, *d)
	}
	return out
}

// Approve executes a parked deferred action on an operator's authority.
// A fresh blast preview is computed for the record, but approval overrides
// the risk band. The parked action is consumed whether execution succeeds
// or not.
func (c *Controller) Approve(ctx context.Context, deferredID, actorRef string) (Decision, error) {
	if c.log.Corrupt() {
		return Decision{}, audit.ErrLogHalted
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	parked, ok := c.deferred[deferredID]
	if !ok {
		return Decision{}, &UnknownDeferredActionError{ID: deferredID}
	}
	delete(c.deferred, deferredID)

	p, err := c.policies.Get(parked.PolicyID)
	if err != nil {
		return Decision{}, err
	}
	if p.Mode == policy.ModeKilled {
		return Decision{
			PolicyID:   p.ID,
			PolicyName: p.Name,
			Mode:       p.Mode,
			Action:     parked.Action,
			Outcome:    OutcomeRejected,
			Reason:     "policy was killed while the action was parked",
		}, nil
	}

	d := Decision{
		PolicyID:   p.ID,
		PolicyName: p.Name,
		Mode:       p.Mode,
		Action:     parked.Action,
	}

	target, isTransition := parseTransitionAction(parked.Action)
	if isTransition {
		if report, err := c.simulator.Preview(parked.EntityID, target); err == nil {
			d.Preview = &report
			c.metrics.EngineOrNil().RecordPreview(string(report.RiskLevel))
		}
	}

	d = c.execute(ctx, d, p, parked.EntityID, parked.EventID, target, isTransition, nil)
	if d.Outcome == OutcomeExecuted {
		d.Reason = "approved by " + actorRef
	}
	c.metrics.EngineOrNil().RecordDecision(string(d.Mode), string(d.Outcome))

	c.logger.Info("deferred action resolved",
		"deferred_id", deferredID,
		"actor_ref", actorRef,
		"outcome", d.Outcome,
	)
	return d, nil
}

// Dismiss discards a parked deferred action without executing it.
func (c *Controller) Dismiss(deferredID, actorRef string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.deferred[deferredID]; !ok {
		return &UnknownDeferredActionError{ID: deferredID}
	}
	delete(c.deferred, deferredID)

	c.logger.Info("deferred action dismissed",
		"deferred_id", deferredID,
		"actor_ref", actorRef,
	)
	return nil
}

// RegisterPolicy registers a policy definition in shadow mode.
func (c *Controller) RegisterPolicy(ctx context.Context, def policy.Definition) (policy.Policy, error) {
	p, err := c.policies.Register(ctx, def)
	if err != nil {
		return policy.Policy{}, err
	}
	c.refreshModeGauge()
	return p, nil
}

// KillPolicy irreversibly disables a policy.
func (c *Controller) KillPolicy(ctx context.Context, policyID, reason string) error {
	if err := c.policies.Kill(ctx, policyID, reason); err != nil {
		return err
	}
	c.metrics.PolicyOrNil().RecordKill()
	c.refreshModeGauge()
	return nil
}

// ForcePromotePolicy advances a policy one mode step on an operator's
// authority.
func (c *Controller) ForcePromotePolicy(ctx context.Context, policyID, actorRef string) (policy.Policy, error) {
	p, err := c.policies.ForcePromote(ctx, policyID, actorRef)
	if err != nil {
		return policy.Policy{}, err
	}
	c.metrics.PolicyOrNil().RecordPromotion(string(p.Mode), "manual")
	c.refreshModeGauge()
	return p, nil
}

// Policy returns a copy of one policy.
func (c *Controller) Policy(policyID string) (policy.Policy, error) {
	return c.policies.Get(policyID)
}

// Policies returns copies of all registered policies.
func (c *Controller) Policies() []policy.Policy {
	return c.policies.List()
}

// RegisterEntity registers a managed entity in the initial lifecycle state.
func (c *Controller) RegisterEntity(ctx context.Context, input entity.RegisterInput) (entity.ManagedEntity, error) {
	return c.machine.Register(ctx, input)
}

// TransitionEntity performs an operator-requested lifecycle transition.
func (c *Controller) TransitionEntity(ctx context.Context, entityID string, target entity.State, actorRef, reason string) (entity.StateChangeRecord, error) {
	return c.machine.Transition(ctx, entityID, target, actorRef, reason)
}

// Entity returns a copy of one managed entity.
func (c *Controller) Entity(entityID string) (entity.ManagedEntity, error) {
	return c.machine.Get(entityID)
}

// Entities returns copies of all managed entities.
func (c *Controller) Entities() []entity.ManagedEntity {
	return c.machine.List()
}

// PreviewBlast computes an on-demand blast-radius report. Pure: no state
// changes, no audit entry.
func (c *Controller) PreviewBlast(entityID string, proposed entity.State) (blast.Report, error) {
	report, err := c.simulator.Preview(entityID, proposed)
	if err != nil {
		return blast.Report{}, err
	}
	c.metrics.EngineOrNil().RecordPreview(string(report.RiskLevel))
	return report, nil
}

// Snapshot returns a point-in-time view of the engine.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	stats := c.stats
	deferredCount := len(c.deferred)
	c.mu.Unlock()

	policies := c.policies.List()
	byMode := make(map[policy.Mode]int)
	for _, p := range policies {
		byMode[p.Mode]++
	}

	return Snapshot{
		Entities:        c.machine.List(),
		Policies:        policies,
		PoliciesByMode:  byMode,
		LastSequence:    c.log.LastSequence(),
		DeferredActions: deferredCount,
		Halted:          c.log.Corrupt(),
		Stats:           stats,
		TakenAt:         time.Now().UTC(),
	}
}

// Close releases the controller's resources. The action channel is closed
// so downstream consumers drain and exit. Close is idempotent and safe to
// call concurrently with event processing: actions executed afterwards are
// dropped instead of sent.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.actions)
	return c.dedup.Close()
}

// refreshModeGauge republishes the per-mode policy counts. Callers hold no
// particular lock; the registry listing is already consistent.
func (c *Controller) refreshModeGauge() {
	pm := c.metrics.PolicyOrNil()
	if pm == nil {
		return
	}

	counts := map[policy.Mode]int{
		policy.ModeShadow:    0,
		policy.ModeCandidate: 0,
		policy.ModePromoted:  0,
		policy.ModeKilled:    0,
	}
	for _, p := range c.policies.List() {
		counts[p.Mode]++
	}
	for mode, count := range counts {
		pm.SetModeCount(string(mode), count)
	}
}

// parseTransitionAction recognizes "transition:<state>" actions and resolves
// the target state against the lifecycle table.
func parseTransitionAction(action string) (entity.State, bool) {
	name, ok := strings.CutPrefix(action, transitionActionPrefix)
	if !ok {
		return "", false
	}
	state, ok := entity.ParseState(name)
	if !ok {
		return "", false
	}
	return state, true
}

func step(stage Stage, note string) TraceStep {
	return TraceStep{Stage: stage, At: time.Now().UTC(), Note: note}
}
