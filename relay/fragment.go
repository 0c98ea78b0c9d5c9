package relay

import "github.com/collazomanuel/cetec-asistente-backend/core"

// Fragment is one unit of a streamed chat response.
type Fragment struct {
	// RunID identifies the in-flight stream so it can be cancelled
	// out of band.
	RunID string `json:"run_id,omitempty"`

	// Delta is the next piece of assistant text.
	Delta string `json:"delta,omitempty"`

	// Finish marks the last fragment of a stream.
	Finish bool `json:"finish,omitempty"`

	// RoutedTo is the ID of the server that produced the response.
	RoutedTo string `json:"routed_to,omitempty"`

	// Subject is the subject the request was resolved under.
	Subject string `json:"subject,omitempty"`

	// MessageID identifies the persisted assistant message. Set on the
	// final fragment.
	MessageID string `json:"message_id,omitempty"`

	// Citations are source references attached to the final fragment.
	Citations []core.Citation `json:"citations,omitempty"`

	// Error carries a terminal error description when the stream broke.
	Error string `json:"error,omitempty"`
}

// ChatRequest is the payload relayed to an A2A backend.
type ChatRequest struct {
	ConversationID string         `json:"conversation_id"`
	Subject        string         `json:"subject"`
	Content        string         `json:"content"`
	History        []core.Message `json:"history,omitempty"`
}
