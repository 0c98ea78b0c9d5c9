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


// Package vectorstore abstracts the vector database used to index document
// chunks produced by ingestion.
//
// The Index interface covers the three operations ingestion needs: ensuring
// the collection exists, upserting chunks, and removing every point that
// belongs to a document. The production implementation lives in
// vectorstore/qdrant; vectorstore/mock provides a test double.
package vectorstore
