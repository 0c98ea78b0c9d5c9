// Copyright 2025 CETEC Asistente Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Domain error taxonomy. HTTP handlers map these to status codes; services
// wrap them with context via fmt.Errorf("...: %w", err).
var (
	// ErrValidation indicates a malformed request or entity.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates an unknown subject, document, job, server or
	// conversation.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a state conflict, e.g. a duplicate non-terminal
	// job for a document.
	ErrConflict = errors.New("conflict")

	// ErrGrantExpired indicates an upload session past its expiry.
	ErrGrantExpired = errors.New("upload grant expired")

	// ErrNoRouteAvailable indicates no healthy server could be resolved for
	// a subject.
	ErrNoRouteAvailable = errors.New("no route available")

	// ErrUpstreamUnavailable indicates the resolved backend failed and no
	// re-route succeeded.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrJobAlreadyTerminal indicates an attempted transition out of a
	// terminal job state. It is reported but treated as a no-op.
	ErrJobAlreadyTerminal = errors.New("job already terminal")

	// ErrInvalidPolicy indicates a policy update referencing an unknown
	// server.
	ErrInvalidPolicy = errors.New("invalid routing policy")

	// ErrInvalidTransition indicates a state-machine transition outside the
	// defined graph.
	ErrInvalidTransition = errors.New("invalid state transition")
)
