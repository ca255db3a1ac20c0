// Package status records the progress of export runs. The Redis-backed store
// lets a second process (the status command, a dashboard) observe a run
// while it is in progress.
package status

import (
	"time"
)

// Redis key layout. %s is the variant name.
const (
	RedisKeyRunPrefix = "ccexport:run:"
	RedisKeyLatestFmt = "ccexport:latest:%s"
)

// RunStateTTL bounds how long finished runs stay in Redis.
const RunStateTTL = 7 * 24 * time.Hour

// Phase is the traversal state of a run.
type Phase string

const (
	PhaseStart           Phase = "start"
	PhaseFetchingPage    Phase = "fetching_page"
	PhaseProcessingItems Phase = "processing_items"
	PhaseDone            Phase = "done"
	PhaseAborted         Phase = "aborted"
)

// RunState is a snapshot of one run.
type RunState struct {
	RunID      string    `json:"run_id"`
	Variant    string    `json:"variant"`
	Phase      Phase     `json:"phase"`
	Page       int       `json:"page"`
	Downloaded int64     `json:"downloaded"`
	Failed     int64     `json:"failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Terminal reports whether the run has finished.
func (s *RunState) Terminal() bool {
	return s.Phase == PhaseDone || s.Phase == PhaseAborted
}

// IsStale returns true if the state has not been updated for maxAge while
// the run is still in progress, which usually means the process died.
func (s *RunState) IsStale(maxAge time.Duration) bool {
	return !s.Terminal() && time.Since(s.UpdatedAt) > maxAge
}
