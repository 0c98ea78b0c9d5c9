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


// Package storage provides the storage abstraction layer for the
// orchestrator.
//
// It defines repository interfaces that decouple the storage implementation
// from the coordinator, job manager, resolver and relay. The only backend
// shipped is BadgerDB (storage/badger), but consumers depend solely on the
// interfaces here, so alternative backends and test doubles slot in without
// modification.
//
// Public constructors in backend packages return these interfaces, not
// concrete types:
//
//	repos, err := badger.NewRepositories(path)
//
// All repository implementations must be safe for concurrent use; every
// method accepts a context.Context for cancellation.
package storage
