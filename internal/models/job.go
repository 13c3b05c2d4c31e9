// Package models defines the job lifecycle types and wire shapes shared by
// the API client, the job controller, and the CLI.
package models

import (
	"time"

	"github.com/racmlabs/racm-int/internal/racm"
)

// Phase is the discrete pipeline stage a job occupies.
type Phase string

const (
	PhaseQueued        Phase = "queued"
	PhaseExtracting    Phase = "extracting"
	PhaseChunking      Phase = "chunking"
	PhaseAnalyzing     Phase = "analyzing"
	PhaseConsolidating Phase = "consolidating"
	PhaseDeduplicating Phase = "deduplicating"
	PhaseSummarizing   Phase = "summarizing"
	PhaseCompleted     Phase = "completed"
	PhaseFailed        Phase = "failed"

	// PhaseCancelled is client-local: the server never reports it. It marks a
	// job the user disengaged from; no further server interaction is implied.
	PhaseCancelled Phase = "cancelled"
)

// PipelineOrder lists the server-side phases in the order a job advances
// through them, terminal states excluded. Used for step displays.
var PipelineOrder = []Phase{
	PhaseQueued,
	PhaseExtracting,
	PhaseChunking,
	PhaseAnalyzing,
	PhaseConsolidating,
	PhaseDeduplicating,
	PhaseSummarizing,
}

// IsTerminal reports whether polling stops at this phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

// StepIndex returns the position of p in the pipeline order, -1 for terminal
// or unknown phases.
func (p Phase) StepIndex() int {
	for i, ph := range PipelineOrder {
		if p == ph {
			return i
		}
	}
	return -1
}

// Job is the client's view of one analysis run. Exactly one job is current
// at a time; a new submission discards the previous one's local state.
type Job struct {
	ID          string    `json:"id"`
	SourceFile  string    `json:"source_file"`
	Prompt      string    `json:"prompt,omitempty"`
	Phase       Phase     `json:"phase"`
	ProgressPct int       `json:"progress_pct"`
	ProgressMsg string    `json:"progress_msg"`
	DetailMsg   string    `json:"detail_msg"`
	ETASeconds  int       `json:"eta_seconds"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ApplyStatus folds a status snapshot into the job. Each poll response is a
// full snapshot, so fields are overwritten unconditionally (last write wins).
func (j *Job) ApplyStatus(s *JobStatus) {
	j.Phase = s.NormalizedPhase()
	j.ProgressPct = s.ProgressPct
	j.ProgressMsg = s.ProgressMsg
	j.DetailMsg = s.DetailMsg
	j.ETASeconds = s.ETASeconds
}

// SubmitResponse is the body of POST /api/jobs.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// JobStatus is the body of GET /api/jobs/{id}/status.
type JobStatus struct {
	Phase       string `json:"phase"`
	ProgressPct int    `json:"progress_pct"`
	ProgressMsg string `json:"progress_msg"`
	DetailMsg   string `json:"detail_msg"`
	ETASeconds  int    `json:"eta_seconds"`
}

// NormalizedPhase lowercases the server's phase string, mapping an absent
// value to "unknown". Unknown phases are preserved as-is for display.
func (s *JobStatus) NormalizedPhase() Phase {
	if s.Phase == "" {
		return Phase("unknown")
	}
	return Phase(toLower(s.Phase))
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ResultSet holds the two parallel entry sequences plus the optional
// narrative summary.
type ResultSet struct {
	DetailedEntries []racm.Entry `json:"detailed_entries"`
	SummaryEntries  []racm.Entry `json:"summary_entries"`
	Narrative       string       `json:"summary_narrative,omitempty"`
}

// resultEnvelope accepts both the wrapped and unwrapped result shapes the
// service has been observed to return.
type resultEnvelope struct {
	Result *ResultSet `json:"result"`

	DetailedEntries []racm.Entry `json:"detailed_entries"`
	SummaryEntries  []racm.Entry `json:"summary_entries"`
	Narrative       string       `json:"summary_narrative"`
}

// UpdateRequest is the body of PUT /api/jobs/{id}/result. Each entry is the
// flat 25-field mapping keyed by label.
type UpdateRequest struct {
	DetailedEntries []map[string]string `json:"detailed_entries"`
	SummaryEntries  []map[string]string `json:"summary_entries"`
}
