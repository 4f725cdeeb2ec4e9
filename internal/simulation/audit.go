package simulation

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditEventType labels entries in the engine's audit trail.
type AuditEventType string

const (
	AuditProtocolLoaded     AuditEventType = "PROTOCOL_LOADED"
	AuditSimulationStarted  AuditEventType = "SIMULATION_STARTED"
	AuditSimulationComplete AuditEventType = "SIMULATION_COMPLETE"
)

// AuditEvent is one append-only audit record. The trail is a side channel:
// the simulation state machine never reads it back.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      AuditEventType `json:"type"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// AuditLog accumulates structured events for a run: protocol load with its
// configuration checksum, simulation start and completion.
type AuditLog struct {
	events []AuditEvent
	log    *logrus.Logger
}

// NewAuditLog creates an empty audit trail.
func NewAuditLog(logger *logrus.Logger) *AuditLog {
	return &AuditLog{log: logger}
}

// Append records an event and mirrors it to the structured log.
func (a *AuditLog) Append(eventType AuditEventType, fields map[string]any) {
	a.events = append(a.events, AuditEvent{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Fields:    fields,
	})
	a.log.WithFields(logrus.Fields(fields)).Info(string(eventType))
}

// Events returns a copy of the trail in append order.
func (a *AuditLog) Events() []AuditEvent {
	out := make([]AuditEvent, len(a.events))
	copy(out, a.events)
	return out
}
