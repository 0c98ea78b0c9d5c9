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


// Package objectstore abstracts the blob store holding uploaded documents.
//
// The orchestrator never proxies file bytes on upload: clients receive a
// presigned URL and write directly to the store. The Store interface covers
// presigning, fetching content for ingestion, and deleting objects.
package objectstore
