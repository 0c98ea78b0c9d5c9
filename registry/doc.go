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


// Package registry manages the catalog of A2A backend servers and tracks
// their health.
//
// Health moves through unknown, healthy, degraded and unreachable. A failed
// probe or relayed call degrades a server; enough consecutive failures mark
// it unreachable; any success restores it to healthy. Servers route traffic
// while healthy or degraded.
//
// The Prober runs active checks on a fixed interval against each server's
// /health endpoint. Relay outcomes feed the same counters through
// ReportOutcome, so a server that fails real traffic decays without waiting
// for the next probe.
package registry
