package core

import (
	"context"
	"time"
)

// AuditEvent is a single append-only record of something the orchestration
// core decided or observed: a model selection, a phase transition, a quality
// gate verdict, a WIP reservation, a safety intervention. The audit stream is
// the system's authoritative account of what happened and why.
type AuditEvent struct {
	Seq       int64             `json:"seq"`
	Timestamp time.Time         `json:"timestamp"`
	RoadmapID RoadmapID         `json:"roadmap_id,omitempty"`
	TaskID    TaskID            `json:"task_id,omitempty"`
	Phase     Phase             `json:"phase,omitempty"`
	Kind      string            `json:"kind"`
	Message   string            `json:"message"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Audit event kinds. Components append new kinds here rather than inventing
// ad-hoc strings, so `query_audit` callers can filter reliably.
const (
	AuditKindModelSelected     = "model_selected"
	AuditKindModelEscalated    = "model_escalated"
	AuditKindPhaseTransition   = "phase_transition"
	AuditKindCriticReport      = "critic_report"
	AuditKindGateDecision      = "gate_decision"
	AuditKindBypassDetected    = "bypass_detected"
	AuditKindRemediationCreated = "remediation_created"
	AuditKindWIPReserved       = "wip_reserved"
	AuditKindWIPReleased       = "wip_released"
	AuditKindAgentCooldown     = "agent_cooldown"
	AuditKindCoordinatorChange = "coordinator_change"
	AuditKindSafetyIntervene   = "safety_intervention"
	AuditKindSupervisorEvent   = "supervisor_event"
	AuditKindProfileUpdated    = "profile_updated"
	AuditKindMaintenanceSignal = "maintenance_signal"
)

// NewAuditEvent constructs an event with its timestamp set. Seq is assigned
// by the Store on append, not by the caller.
func NewAuditEvent(kind, message string) AuditEvent {
	return AuditEvent{
		Timestamp: time.Now(),
		Kind:      kind,
		Message:   message,
	}
}

// WithTask attaches task/phase context to the event.
func (e AuditEvent) WithTask(taskID TaskID, phase Phase) AuditEvent {
	e.TaskID = taskID
	e.Phase = phase
	return e
}

// WithRoadmap attaches roadmap context to the event.
func (e AuditEvent) WithRoadmap(roadmapID RoadmapID) AuditEvent {
	e.RoadmapID = roadmapID
	return e
}

// WithDetail attaches a key/value pair to the event's detail map.
func (e AuditEvent) WithDetail(key, value string) AuditEvent {
	if e.Detail == nil {
		e.Detail = make(map[string]string)
	}
	e.Detail[key] = value
	return e
}

// AuditRecorder persists audit events in append-only order.
type AuditRecorder interface {
	// AppendAudit appends event to the audit stream, assigning it a
	// monotonic sequence number, and returns the assigned event.
	AppendAudit(ctx context.Context, event AuditEvent) (AuditEvent, error)
}
