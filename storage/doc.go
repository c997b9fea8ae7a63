// Copyright 2026 Meridian Systems
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

// Package storage provides the persistence abstraction of the sync engine.
//
// It defines three repository interfaces, all keyed by the tenant-qualified
// composite identity of core.ObjectKey:
//
//   - RecordStore: the primary record store (source of truth)
//   - RunRepository: run records and resumable run progress
//   - SyncStateRepository: durable per-(tenant, platform) sync state
//
// Implementations must be thread-safe. The BadgerDB implementation lives in
// the badger subpackage; constructors there return these interfaces so that
// callers never couple to BadgerDB specifics.
//
// Values are serialized with hand-written mus-format serializers (see
// serialization.go); the binary layout is an implementation detail of this
// package and not a wire format.
package storage
