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


// Package routing resolves subjects to A2A backend servers.
//
// The Resolver holds the active policy in an atomic snapshot, so resolution
// never takes a lock on the hot path and an update swaps the whole policy at
// once. Rules are evaluated in order; the first pattern matching the subject
// wins. A matched but unroutable target falls back to the policy default
// before giving up.
package routing
