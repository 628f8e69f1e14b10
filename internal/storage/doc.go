/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package storage persists the launcher layout (points and nests).
// It offers a canonical JSON file (launcher.json) with transactional writes,
// timestamped backups and schema validation, and a SQL store backed by either
// an embedded SQLite file or PostgreSQL. WriteBehind decouples callers from
// the I/O so the gesture path never waits on disk.
package storage
