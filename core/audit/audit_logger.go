package audit

import (
	"fmt"
	"time"
)

// Event types recorded by the finality engine.
const (
	EventFinalityDecision   = "FinalityDecision"
	EventAdmissionRejected  = "AdmissionRejected"
	EventSignatureRejected  = "SignatureRejected"
	EventLedgerAppendFailed = "LedgerAppendFailed"
)

// AuditEvent represents one auditable decision made by the engine.
type AuditEvent struct {
	Timestamp time.Time
	EventType string // e.g., "FinalityDecision", "AdmissionRejected"
	EntityID  string // block hash or transaction ID
	Result    string // e.g., "finalized", "rejected"
	Reason    string // error message or reason code
	Metadata  map[string]string
}

// AuditLogger is the interface for logging audit events.
type AuditLogger interface {
	LogEvent(event AuditEvent)
}

// StdoutAuditLogger is a simple implementation that logs to stdout.
type StdoutAuditLogger struct{}

func (l *StdoutAuditLogger) LogEvent(event AuditEvent) {
	fmt.Printf("[%s] [%s] Entity: %s, Result: %s, Reason: %s, Metadata: %+v\n",
		event.Timestamp.Format(time.RFC3339), event.EventType, event.EntityID, event.Result, event.Reason, event.Metadata)
}

// NewStdoutAuditLogger returns a new StdoutAuditLogger.
func NewStdoutAuditLogger() AuditLogger {
	return &StdoutAuditLogger{}
}

// NopAuditLogger discards events.
type NopAuditLogger struct{}

func (NopAuditLogger) LogEvent(AuditEvent) {}
