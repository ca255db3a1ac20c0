package status

import (
	"context"
	"testing"
	"time"
)

func TestRunState_Terminal(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected bool
	}{
		{PhaseStart, false},
		{PhaseFetchingPage, false},
		{PhaseProcessingItems, false},
		{PhaseDone, true},
		{PhaseAborted, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			s := &RunState{Phase: tt.phase}
			if got := s.Terminal(); got != tt.expected {
				t.Errorf("Terminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRunState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    RunState
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh in-progress run",
			state:    RunState{Phase: PhaseProcessingItems, UpdatedAt: time.Now()},
			maxAge:   time.Minute,
			expected: false,
		},
		{
			name:     "silent in-progress run",
			state:    RunState{Phase: PhaseFetchingPage, UpdatedAt: time.Now().Add(-10 * time.Minute)},
			maxAge:   time.Minute,
			expected: true,
		},
		{
			name:     "finished runs never go stale",
			state:    RunState{Phase: PhaseDone, UpdatedAt: time.Now().Add(-24 * time.Hour)},
			maxAge:   time.Minute,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNop(t *testing.T) {
	var r Reporter = Nop{}
	if err := r.Report(context.Background(), RunState{RunID: "x"}); err != nil {
		t.Errorf("Nop.Report() = %v", err)
	}
}

func TestParseState(t *testing.T) {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fields := map[string]string{
		"run_id":     "abc",
		"variant":    "library",
		"phase":      "done",
		"page":       "3",
		"downloaded": "42",
		"failed":     "2",
		"started_at": "1709294400000",
		"updated_at": "1709294460000",
	}

	state, err := parseState(fields)
	if err != nil {
		t.Fatalf("parseState() failed: %v", err)
	}

	if state.Page != 3 || state.Downloaded != 42 || state.Failed != 2 {
		t.Errorf("counters = page %d, downloaded %d, failed %d", state.Page, state.Downloaded, state.Failed)
	}
	if !state.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", state.StartedAt, started)
	}
	if state.Phase != PhaseDone {
		t.Errorf("Phase = %q, want done", state.Phase)
	}

	fields["failed"] = "many"
	if _, err := parseState(fields); err == nil {
		t.Error("expected error for non-numeric counter")
	}
}
