package core

import (
	"testing"
)

func TestKeyFromContent(t *testing.T) {
	k1 := KeyFromContent("physics-1/syllabus.pdf")
	k2 := KeyFromContent("physics-1/syllabus.pdf")
	if k1 != k2 {
		t.Errorf("KeyFromContent() produced different keys for same content: %s vs %s", k1, k2)
	}

	if KeyFromContent("a") == KeyFromContent("b") {
		t.Error("KeyFromContent() produced same key for different content")
	}
}

func TestJobStateTransitions(t *testing.T) {
	tests := []struct {
		name string
		from JobState
		to   JobState
		want bool
	}{
		{"queued to running", JobQueued, JobRunning, true},
		{"running to vectorizing", JobRunning, JobVectorizing, true},
		{"vectorizing to completed", JobVectorizing, JobCompleted, true},
		{"queued to cancelled", JobQueued, JobCancelled, true},
		{"running to failed", JobRunning, JobFailed, true},
		{"vectorizing to cancelled", JobVectorizing, JobCancelled, true},
		{"queued skips to vectorizing", JobQueued, JobVectorizing, false},
		{"queued skips to completed", JobQueued, JobCompleted, false},
		{"running skips to completed", JobRunning, JobCompleted, false},
		{"backwards running to queued", JobRunning, JobQueued, false},
		{"out of completed", JobCompleted, JobFailed, false},
		{"out of failed", JobFailed, JobRunning, false},
		{"out of cancelled", JobCancelled, JobCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestJobStateTerminal(t *testing.T) {
	for _, s := range []JobState{JobCompleted, JobFailed, JobCancelled} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []JobState{JobQueued, JobRunning, JobVectorizing} {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestHealthRoutable(t *testing.T) {
	if !HealthHealthy.Routable() || !HealthDegraded.Routable() {
		t.Error("healthy and degraded must be routable")
	}
	if HealthUnknown.Routable() || HealthUnreachable.Routable() {
		t.Error("unknown and unreachable must not be routable")
	}
}
