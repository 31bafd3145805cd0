package server

import (
	"net/http"
	"strconv"
	"time"

	"governor-hq/ganymede/pkg/entity"
	"governor-hq/ganymede/pkg/policy"
	"governor-hq/ganymede/pkg/rollout"
)

// emitEventRequest is the body of POST /v1/events.
type emitEventRequest struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	EntityID  string         `json:"entity_id"`
	EmittedAt time.Time      `json:"emitted_at"`
	Payload   map[string]any `json:"payload"`
}

func (s *Server) handleEmitEvent(w http.ResponseWriter, r *http.Request) {
	var req emitEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.controller.EmitEvent(r.Context(), rollout.OutcomeEvent{
		ID:        req.ID,
		Type:      req.Type,
		EntityID:  req.EntityID,
		EmittedAt: req.EmittedAt,
		Payload:   req.Payload,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// registerEntityRequest is the body of POST /v1/entities.
type registerEntityRequest struct {
	CustomerRef     string  `json:"customer_ref"`
	ProducerRef     string  `json:"producer_ref"`
	ResourceSlotRef string  `json:"resource_slot_ref"`
	MonetaryValue   float64 `json:"monetary_value"`
}

func (s *Server) handleRegisterEntity(w http.ResponseWriter, r *http.Request) {
	var req registerEntityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.CustomerRef == "" {
		writeError(w, http.StatusBadRequest, "customer_ref is required")
		return
	}

	e, err := s.controller.RegisterEntity(r.Context(), entity.RegisterInput{
		CustomerRef:     req.CustomerRef,
		ProducerRef:     req.ProducerRef,
		ResourceSlotRef: req.ResourceSlotRef,
		MonetaryValue:   req.MonetaryValue,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Entities())
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.controller.Entity(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// transitionRequest is the body of POST /v1/entities/{id}/transition.
type transitionRequest struct {
	Target   string `json:"target"`
	ActorRef string `json:"actor_ref"`
	Reason   string `json:"reason"`
}

func (s *Server) handleTransitionEntity(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	target, ok := entity.ParseState(req.Target)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown target state "+strconv.Quote(req.Target))
		return
	}
	if req.ActorRef == "" {
		writeError(w, http.StatusBadRequest, "actor_ref is required")
		return
	}

	record, err := s.controller.TransitionEntity(r.Context(), r.PathValue("id"), target, req.ActorRef, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handlePreviewBlast(w http.ResponseWriter, r *http.Request) {
	proposed, ok := entity.ParseState(r.URL.Query().Get("state"))
	if !ok {
		writeError(w, http.StatusBadRequest, "query parameter state must name a lifecycle state")
		return
	}

	report, err := s.controller.PreviewBlast(r.PathValue("id"), proposed)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRegisterPolicy(w http.ResponseWriter, r *http.Request) {
	var def policy.Definition
	if err := decodeJSON(r, &def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, err := s.controller.RegisterPolicy(r.Context(), def)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Policies())
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.controller.Policy(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// killRequest is the body of POST /v1/policies/{id}/kill.
type killRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleKillPolicy(w http.ResponseWriter, r *http.Request) {
	var req killRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.controller.KillPolicy(r.Context(), r.PathValue("id"), req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// forcePromoteRequest is the body of POST /v1/policies/{id}/force-promote.
type forcePromoteRequest struct {
	ActorRef string `json:"actor_ref"`
}

func (s *Server) handleForcePromote(w http.ResponseWriter, r *http.Request) {
	var req forcePromoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ActorRef == "" {
		writeError(w, http.StatusBadRequest, "actor_ref is required")
		return
	}

	p, err := s.controller.ForcePromotePolicy(r.Context(), r.PathValue("id"), req.ActorRef)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListDeferred(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.ListDeferred())
}

// approvalRequest is the body of deferred-action approve and dismiss calls.
type approvalRequest struct {
	ActorRef string `json:"actor_ref"`
}

func (s *Server) handleApproveDeferred(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ActorRef == "" {
		writeError(w, http.StatusBadRequest, "actor_ref is required")
		return
	}

	d, err := s.controller.Approve(r.Context(), r.PathValue("id"), req.ActorRef)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDismissDeferred(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ActorRef == "" {
		writeError(w, http.StatusBadRequest, "actor_ref is required")
		return
	}

	if err := s.controller.Dismiss(r.PathValue("id"), req.ActorRef); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAuditRange serves GET /v1/audit?from=N&to=M. A missing from defaults
// to 1; a missing or zero to means "through the end of the log".
func (s *Server) handleAuditRange(w http.ResponseWriter, r *http.Request) {
	from := uint64(1)
	if raw := r.URL.Query().Get("from"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || v == 0 {
			writeError(w, http.StatusBadRequest, "from must be a positive integer")
			return
		}
		from = v
	}

	var to uint64
	if raw := r.URL.Query().Get("to"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be an integer")
			return
		}
		to = v
	}

	entries, err := s.log.Range(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Liveness())
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := s.health.Readiness(r.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
