package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collazomanuel/cetec-asistente-backend/core"
)

func TestUploadSessionRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	s := &core.UploadSession{
		ID:          core.NewID(),
		SubjectID:   "algebra-1",
		FileName:    "apunte.pdf",
		ContentType: "application/pdf",
		ObjectKey:   "algebra-1/abc_apunte.pdf",
		GrantedURL:  "https://objects.local/put?sig=xyz",
		ExpiresAt:   now.Add(15 * time.Minute),
		Status:      core.SessionPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	got, err := UnmarshalUploadSession(MarshalUploadSession(s))
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestIngestionJobRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	j := &core.IngestionJob{
		ID:         core.NewID(),
		DocumentID: core.NewID(),
		SubjectID:  "fisica-2",
		State:      core.JobVectorizing,
		Attempt:    2,
		Chunks:     41,
		Vectors:    41,
		Error:      "",
		CreatedAt:  now,
		UpdatedAt:  now.Add(3 * time.Second),
	}

	got, err := UnmarshalIngestionJob(MarshalIngestionJob(j))
	require.NoError(t, err)
	assert.Equal(t, j, got)
}

func TestPolicyRoundTrip(t *testing.T) {
	p := &core.RoutingPolicy{
		Version: 4,
		Rules: []core.RoutingRule{
			{SubjectMatch: "math-*", TargetServerID: "srv-a", Weight: 10},
			{SubjectMatch: "physics-*", TargetServerID: "srv-b"},
		},
		DefaultServerID: "srv-a",
		UpdatedAt:       time.Now().UTC().Truncate(time.Microsecond),
	}

	got, err := UnmarshalPolicy(MarshalPolicy(p))
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestMessageRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	msg := &core.Message{
		ID:             core.NewID(),
		ConversationID: core.NewID(),
		Role:           core.RoleAssistant,
		Content:        "La derivada de x^2 es 2x.",
		RoutedTo:       "srv-a",
		Subject:        "math-2",
		Citations: []core.Citation{
			{Title: "Apunte de derivadas", URI: "doc://d1#c3", Score: 0.87, DocumentID: "d1"},
		},
		CreatedAt: now,
	}

	got, err := UnmarshalMessage(MarshalMessage(msg))
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestUnmarshalTruncated(t *testing.T) {
	s := &core.A2AServer{
		ID:       core.NewID(),
		Name:     "mesh-a",
		Endpoint: "http://mesh-a:9000",
	}
	data := MarshalServer(s)

	_, err := UnmarshalServer(data[:len(data)/2])
	assert.Error(t, err)
}
