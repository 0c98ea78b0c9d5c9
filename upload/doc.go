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


// Package upload coordinates direct-to-store document uploads.
//
// The coordinator never proxies file bytes. Presign issues a time-limited
// grant for a PUT straight to the object store; Complete turns a finished
// upload into a stored document. Completion is idempotent, and completing
// after the grant expired marks the session expired instead.
//
// A background sweeper expires overdue pending sessions so abandoned grants
// don't linger.
package upload
