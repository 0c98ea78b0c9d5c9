package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateUploadSession(t *testing.T) {
	valid := &UploadSession{
		ID:        NewID(),
		SubjectID: "physics-1",
		FileName:  "syllabus.pdf",
		ExpiresAt: time.Now().Add(time.Hour),
		Status:    SessionPending,
	}
	if err := ValidateUploadSession(valid); err != nil {
		t.Fatalf("expected valid session, got %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*UploadSession)
		wantErr bool
	}{
		{"missing subject", func(s *UploadSession) { s.SubjectID = "" }, true},
		{"missing file name", func(s *UploadSession) { s.FileName = "" }, true},
		{"missing expiry", func(s *UploadSession) { s.ExpiresAt = time.Time{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := *valid
			tt.mutate(&s)
			err := ValidateUploadSession(&s)
			if tt.wantErr && !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}

	if !errors.Is(ValidateUploadSession(nil), ErrValidation) {
		t.Error("expected ErrValidation for nil session")
	}
}

func TestValidatePolicy(t *testing.T) {
	good := &RoutingPolicy{
		Rules: []RoutingRule{
			{SubjectMatch: "math-*", TargetServerID: "srvA"},
			{SubjectMatch: "physics-1", TargetServerID: "srvB"},
		},
		DefaultServerID: "srvB",
	}
	if err := ValidatePolicy(good); err != nil {
		t.Fatalf("expected valid policy, got %v", err)
	}

	bad := &RoutingPolicy{Rules: []RoutingRule{{SubjectMatch: "[", TargetServerID: "srvA"}}}
	if !errors.Is(ValidatePolicy(bad), ErrInvalidPolicy) {
		t.Error("expected ErrInvalidPolicy for malformed pattern")
	}

	empty := &RoutingPolicy{Rules: []RoutingRule{{SubjectMatch: "", TargetServerID: "srvA"}}}
	if !errors.Is(ValidatePolicy(empty), ErrInvalidPolicy) {
		t.Error("expected ErrInvalidPolicy for empty match")
	}

	noTarget := &RoutingPolicy{Rules: []RoutingRule{{SubjectMatch: "math-*", TargetServerID: ""}}}
	if !errors.Is(ValidatePolicy(noTarget), ErrInvalidPolicy) {
		t.Error("expected ErrInvalidPolicy for empty target")
	}
}
