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


// Package ai provides abstractions for the embedding services used during
// document ingestion.
//
// The package defines the Embedder interface so ingestion depends on an
// abstraction rather than a concrete provider. Two implementation
// sub-packages exist:
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external services
//
// Public constructors (openai.NewEmbedder) return the interface type to
// enforce abstraction. Mock constructors return concrete types so tests can
// inject behavior and assert on call counts.
package ai
