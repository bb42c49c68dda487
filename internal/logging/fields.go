package logging

// Standardized structured logging keys.
const (
	FieldComponent     = "component"
	FieldRunID         = "run_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldImpact        = "impact"
	FieldDecisionType  = "decision_type"
	FieldAlert         = "alert"
	FieldModel         = "model"
	FieldAttempt       = "attempt"
)
