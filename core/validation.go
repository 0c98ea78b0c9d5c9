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

import (
	"fmt"
	"path"
)

// ValidateUploadSession validates a session before persistence.
//
// Validation rules:
//   - SubjectID and FileName must not be empty
//   - ExpiresAt must be set
func ValidateUploadSession(s *UploadSession) error {
	if s == nil {
		return fmt.Errorf("%w: session is nil", ErrValidation)
	}
	if s.SubjectID == "" {
		return fmt.Errorf("%w: subject id is required", ErrValidation)
	}
	if s.FileName == "" {
		return fmt.Errorf("%w: file name is required", ErrValidation)
	}
	if s.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: expiry is required", ErrValidation)
	}
	return nil
}

// ValidateServer validates a server registration.
func ValidateServer(s *A2AServer) error {
	if s == nil {
		return fmt.Errorf("%w: server is nil", ErrValidation)
	}
	if s.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrValidation)
	}
	return nil
}

// ValidatePolicy performs structural validation of a routing policy. The
// referential check against registered servers happens in the resolver,
// which has the registry view.
func ValidatePolicy(p *RoutingPolicy) error {
	if p == nil {
		return fmt.Errorf("%w: policy is nil", ErrInvalidPolicy)
	}
	for i, rule := range p.Rules {
		if rule.SubjectMatch == "" {
			return fmt.Errorf("%w: rule %d has empty subject match", ErrInvalidPolicy, i)
		}
		if rule.TargetServerID == "" {
			return fmt.Errorf("%w: rule %d has empty target", ErrInvalidPolicy, i)
		}
		// path.Match reports malformed patterns up front so resolve never
		// has to deal with them.
		if _, err := path.Match(rule.SubjectMatch, "probe"); err != nil {
			return fmt.Errorf("%w: rule %d has bad pattern %q", ErrInvalidPolicy, i, rule.SubjectMatch)
		}
	}
	return nil
}

// ValidateMessageContent validates user-supplied message content.
func ValidateMessageContent(content string) error {
	if content == "" {
		return fmt.Errorf("%w: content cannot be empty", ErrValidation)
	}
	return nil
}
