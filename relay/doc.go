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


// Package relay streams chat traffic between clients and A2A backend
// servers.
//
// The Engine resolves the conversation's subject to a backend, opens an
// upstream stream, and forwards fragments over a bounded channel. History is
// written around the stream, not during it: the user message is persisted
// once the upstream accepts the call, and the assistant message only after a
// finished stream. A cancelled or broken stream leaves no partial assistant
// message behind.
//
// Upstream outcomes feed the registry's health counters. When the resolved
// server refuses the connection the engine re-routes once to the policy
// default before giving up with ErrUpstreamUnavailable.
package relay
