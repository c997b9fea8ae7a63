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

package core

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"

	"github.com/go-crypt/x/blake2b"
)

// hashVersion is mixed into every digest so that a future change to the
// canonical field set invalidates old hashes instead of colliding with
// them. Bump it whenever hashedFields changes.
const hashVersion = "syncline/hash/v1"

// hashedFields documents the canonical field set, in digest order.
// Volatile attributes (CreatedAt, UpdatedAt, IndexState, RawPayload)
// are deliberately absent: they change without a meaningful content
// change and must never affect the hash.
var hashedFields = []string{
	"key.tenant_id",
	"key.platform",
	"key.object_type",
	"key.original_id",
	"content.title",
	"content.body",
	"content.author",
	"content.labels",
	"content.thread",
	"content.attachments",
}

// ContentHash computes the deterministic BLAKE2b-256 digest of an
// object's logical content. Identical logical content always yields an
// identical hash regardless of label insertion order; any logical
// change yields a different hash with overwhelming probability.
func ContentHash(key ObjectKey, content *NormalizedContent) string {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits

	writeString(h, hashVersion)
	writeString(h, key.TenantID)
	writeString(h, key.Platform)
	writeString(h, key.ObjectType)
	writeString(h, key.OriginalID)

	writeString(h, content.Title)
	writeString(h, content.Body)
	writeString(h, content.Author)

	// Labels are a map: order keys deterministically.
	labelKeys := make([]string, 0, len(content.Labels))
	for k := range content.Labels {
		labelKeys = append(labelKeys, k)
	}
	sort.Strings(labelKeys)
	writeInt(h, len(labelKeys))
	for _, k := range labelKeys {
		writeString(h, k)
		writeString(h, content.Labels[k])
	}

	writeInt(h, len(content.Thread))
	for _, entry := range content.Thread {
		writeString(h, entry.Author)
		writeString(h, entry.Body)
		writeInt64(h, entry.PostedAt.UTC().UnixMicro())
	}

	writeInt(h, len(content.Attachments))
	for _, att := range content.Attachments {
		writeString(h, att.Name)
		writeString(h, att.ContentType)
		writeInt64(h, att.Size)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// writeString writes a length-prefixed string so that adjacent fields
// can never be confused for one another ("ab","c" vs "a","bc").
func writeString(h hash.Hash, s string) {
	writeInt64(h, int64(len(s)))
	h.Write([]byte(s))
}

func writeInt(h hash.Hash, v int) {
	writeInt64(h, int64(v))
}

func writeInt64(h hash.Hash, v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	h.Write(buf[:])
}
