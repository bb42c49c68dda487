package runstore

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusReview    Status = "review"
)

var statusSet = map[Status]struct{}{
	StatusRunning:   {},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusReview:    {},
}

// ParseStatus converts a string to a Status if recognized.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[normalized]; ok {
		return normalized, true
	}
	return "", false
}

// Run is one pipeline execution.
type Run struct {
	ID           string
	VideoPath    string
	ScriptPath   string
	OutputPath   string
	WorkDir      string
	Status       Status
	Stage        string
	Model        string
	FellBack     bool
	EventCount   int
	DroppedCount int
	ErrorMessage string
	ReviewReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTerminal reports whether the run has finished one way or another.
func (r Run) IsTerminal() bool {
	return r.Status != StatusRunning
}

// Marker records that a stage produced an artifact for a given input digest.
type Marker struct {
	Stage        string
	InputHash    string
	ArtifactPath string
	RunID        string
	CompletedAt  time.Time
}

// OracleCall records one oracle invocation attempt.
type OracleCall struct {
	RunID        string
	Attempt      int
	Model        string
	Succeeded    bool
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	ErrorMessage string
	Duration     time.Duration
	CreatedAt    time.Time
}

// UsageTotals aggregates oracle usage for a run.
type UsageTotals struct {
	Calls        int
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
