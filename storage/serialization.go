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

package storage

import (
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/meridianhq/syncline/core"
)

// Hand-written mus-format serializers for the stored value types.
// Field order is fixed; changing it requires a data migration.

// MarshalObject serializes an IntegratedObject to bytes.
func MarshalObject(o *core.IntegratedObject) []byte {
	buf := make([]byte, sizeObject(o))
	marshalObject(o, buf)
	return buf
}

// UnmarshalObject deserializes an IntegratedObject from bytes.
func UnmarshalObject(data []byte) (*core.IntegratedObject, error) {
	o, _, err := unmarshalObject(data)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// MarshalRun serializes a Run to bytes.
func MarshalRun(run *core.Run) []byte {
	buf := make([]byte, sizeRun(run))
	marshalRun(run, buf)
	return buf
}

// UnmarshalRun deserializes a Run from bytes.
func UnmarshalRun(data []byte) (*core.Run, error) {
	run, _, err := unmarshalRun(data)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// MarshalProgress serializes a RunProgress to bytes.
func MarshalProgress(p *core.RunProgress) []byte {
	buf := make([]byte, sizeProgress(p))
	marshalProgress(p, buf)
	return buf
}

// UnmarshalProgress deserializes a RunProgress from bytes.
func UnmarshalProgress(data []byte) (*core.RunProgress, error) {
	p, _, err := unmarshalProgress(data)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// MarshalSyncState serializes a SyncState to bytes.
func MarshalSyncState(s *core.SyncState) []byte {
	buf := make([]byte, sizeSyncState(s))
	marshalSyncState(s, buf)
	return buf
}

// UnmarshalSyncState deserializes a SyncState from bytes.
func UnmarshalSyncState(data []byte) (*core.SyncState, error) {
	s, _, err := unmarshalSyncState(data)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// IntegratedObject

func sizeObject(o *core.IntegratedObject) (size int) {
	size = ord.String.Size(o.Key.TenantID) +
		ord.String.Size(o.Key.Platform) +
		ord.String.Size(o.Key.ObjectType) +
		ord.String.Size(o.Key.OriginalID) +
		ord.String.Size(o.ContentHash) +
		ord.String.Size(o.Content.Title) +
		ord.String.Size(o.Content.Body) +
		ord.String.Size(o.Content.Author)

	size += varint.Int.Size(len(o.Content.Labels))
	for k, v := range o.Content.Labels {
		size += ord.String.Size(k) + ord.String.Size(v)
	}

	size += varint.Int.Size(len(o.Content.Thread))
	for _, entry := range o.Content.Thread {
		size += ord.String.Size(entry.Author) +
			ord.String.Size(entry.Body) +
			sizeTime(entry.PostedAt)
	}

	size += varint.Int.Size(len(o.Content.Attachments))
	for _, att := range o.Content.Attachments {
		size += ord.String.Size(att.Name) +
			ord.String.Size(att.ContentType) +
			varint.Int64.Size(att.Size)
	}

	size += ord.String.Size(string(o.RawPayload))
	size += ord.String.Size(string(o.IndexState))
	size += sizeTime(o.CreatedAt) + sizeTime(o.UpdatedAt)
	return size
}

func marshalObject(o *core.IntegratedObject, bs []byte) (n int) {
	n = ord.String.Marshal(o.Key.TenantID, bs)
	n += ord.String.Marshal(o.Key.Platform, bs[n:])
	n += ord.String.Marshal(o.Key.ObjectType, bs[n:])
	n += ord.String.Marshal(o.Key.OriginalID, bs[n:])
	n += ord.String.Marshal(o.ContentHash, bs[n:])
	n += ord.String.Marshal(o.Content.Title, bs[n:])
	n += ord.String.Marshal(o.Content.Body, bs[n:])
	n += ord.String.Marshal(o.Content.Author, bs[n:])

	n += varint.Int.Marshal(len(o.Content.Labels), bs[n:])
	for k, v := range o.Content.Labels {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(v, bs[n:])
	}

	n += varint.Int.Marshal(len(o.Content.Thread), bs[n:])
	for _, entry := range o.Content.Thread {
		n += ord.String.Marshal(entry.Author, bs[n:])
		n += ord.String.Marshal(entry.Body, bs[n:])
		n += marshalTime(entry.PostedAt, bs[n:])
	}

	n += varint.Int.Marshal(len(o.Content.Attachments), bs[n:])
	for _, att := range o.Content.Attachments {
		n += ord.String.Marshal(att.Name, bs[n:])
		n += ord.String.Marshal(att.ContentType, bs[n:])
		n += varint.Int64.Marshal(att.Size, bs[n:])
	}

	n += ord.String.Marshal(string(o.RawPayload), bs[n:])
	n += ord.String.Marshal(string(o.IndexState), bs[n:])
	n += marshalTime(o.CreatedAt, bs[n:])
	n += marshalTime(o.UpdatedAt, bs[n:])
	return n
}

func unmarshalObject(bs []byte) (o *core.IntegratedObject, n int, err error) {
	o = &core.IntegratedObject{}
	var m int

	if o.Key.TenantID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if o.Key.Platform, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if o.Key.ObjectType, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if o.Key.OriginalID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if o.ContentHash, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if o.Content.Title, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if o.Content.Body, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if o.Content.Author, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m

	var count int
	if count, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if count > 0 {
		o.Content.Labels = make(map[string]string, count)
		for i := 0; i < count; i++ {
			var k, v string
			if k, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return nil, n, err
			}
			n += m
			if v, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return nil, n, err
			}
			n += m
			o.Content.Labels[k] = v
		}
	}

	if count, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if count > 0 {
		o.Content.Thread = make([]core.ThreadEntry, count)
		for i := 0; i < count; i++ {
			entry := &o.Content.Thread[i]
			if entry.Author, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return nil, n, err
			}
			n += m
			if entry.Body, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return nil, n, err
			}
			n += m
			if entry.PostedAt, m, err = unmarshalTime(bs[n:]); err != nil {
				return nil, n, err
			}
			n += m
		}
	}

	if count, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if count > 0 {
		o.Content.Attachments = make([]core.AttachmentMeta, count)
		for i := 0; i < count; i++ {
			att := &o.Content.Attachments[i]
			if att.Name, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return nil, n, err
			}
			n += m
			if att.ContentType, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return nil, n, err
			}
			n += m
			if att.Size, m, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
				return nil, n, err
			}
			n += m
		}
	}

	var payload string
	if payload, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if payload != "" {
		o.RawPayload = []byte(payload)
	}

	var state string
	if state, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	o.IndexState = core.IndexState(state)

	if o.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if o.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m

	return o, n, nil
}

// Run

func sizeRun(run *core.Run) int {
	return ord.String.Size(run.ID) +
		ord.String.Size(run.TenantID) +
		ord.String.Size(run.Platform) +
		ord.String.Size(string(run.Mode)) +
		ord.String.Size(string(run.Status)) +
		sizeCounts(&run.Counts) +
		sizeTime(run.StartedAt) +
		sizeTime(run.EndedAt) +
		ord.String.Size(run.LastError)
}

func marshalRun(run *core.Run, bs []byte) (n int) {
	n = ord.String.Marshal(run.ID, bs)
	n += ord.String.Marshal(run.TenantID, bs[n:])
	n += ord.String.Marshal(run.Platform, bs[n:])
	n += ord.String.Marshal(string(run.Mode), bs[n:])
	n += ord.String.Marshal(string(run.Status), bs[n:])
	n += marshalCounts(&run.Counts, bs[n:])
	n += marshalTime(run.StartedAt, bs[n:])
	n += marshalTime(run.EndedAt, bs[n:])
	n += ord.String.Marshal(run.LastError, bs[n:])
	return n
}

func unmarshalRun(bs []byte) (run *core.Run, n int, err error) {
	run = &core.Run{}
	var m int

	if run.ID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if run.TenantID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if run.Platform, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m

	var s string
	if s, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	run.Mode = core.SyncMode(s)

	if s, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	run.Status = core.RunStatus(s)

	if m, err = unmarshalCounts(&run.Counts, bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if run.StartedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if run.EndedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if run.LastError, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m

	return run, n, nil
}

// RunProgress

func sizeProgress(p *core.RunProgress) int {
	size := ord.String.Size(p.RunID) +
		ord.String.Size(p.Cursor) +
		varint.Int.Size(len(p.SeenUIDs))
	for _, uid := range p.SeenUIDs {
		size += ord.String.Size(uid)
	}
	return size + sizeCounts(&p.Counts) + sizeTime(p.UpdatedAt)
}

func marshalProgress(p *core.RunProgress, bs []byte) (n int) {
	n = ord.String.Marshal(p.RunID, bs)
	n += ord.String.Marshal(p.Cursor, bs[n:])
	n += varint.Int.Marshal(len(p.SeenUIDs), bs[n:])
	for _, uid := range p.SeenUIDs {
		n += ord.String.Marshal(uid, bs[n:])
	}
	n += marshalCounts(&p.Counts, bs[n:])
	n += marshalTime(p.UpdatedAt, bs[n:])
	return n
}

func unmarshalProgress(bs []byte) (p *core.RunProgress, n int, err error) {
	p = &core.RunProgress{}
	var m int

	if p.RunID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if p.Cursor, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m

	var count int
	if count, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if count > 0 {
		p.SeenUIDs = make([]string, count)
		for i := 0; i < count; i++ {
			if p.SeenUIDs[i], m, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return nil, n, err
			}
			n += m
		}
	}

	if m, err = unmarshalCounts(&p.Counts, bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if p.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m

	return p, n, nil
}

// SyncState

func sizeSyncState(s *core.SyncState) int {
	return ord.String.Size(s.TenantID) +
		ord.String.Size(s.Platform) +
		sizeTime(s.LastRunAt) +
		ord.String.Size(s.LastCursor) +
		varint.Int.Size(s.KnownIDCount) +
		ord.String.Size(string(s.ModeInProgress))
}

func marshalSyncState(s *core.SyncState, bs []byte) (n int) {
	n = ord.String.Marshal(s.TenantID, bs)
	n += ord.String.Marshal(s.Platform, bs[n:])
	n += marshalTime(s.LastRunAt, bs[n:])
	n += ord.String.Marshal(s.LastCursor, bs[n:])
	n += varint.Int.Marshal(s.KnownIDCount, bs[n:])
	n += ord.String.Marshal(string(s.ModeInProgress), bs[n:])
	return n
}

func unmarshalSyncState(bs []byte) (s *core.SyncState, n int, err error) {
	s = &core.SyncState{}
	var m int

	if s.TenantID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if s.Platform, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if s.LastRunAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if s.LastCursor, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if s.KnownIDCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m

	var mode string
	if mode, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	s.ModeInProgress = core.SyncMode(mode)

	return s, n, nil
}

// Counts

func sizeCounts(c *core.Counts) int {
	return varint.Int.Size(c.Fetched) +
		varint.Int.Size(c.Added) +
		varint.Int.Size(c.Updated) +
		varint.Int.Size(c.Unchanged) +
		varint.Int.Size(c.Deleted) +
		varint.Int.Size(c.Errors)
}

func marshalCounts(c *core.Counts, bs []byte) (n int) {
	n = varint.Int.Marshal(c.Fetched, bs)
	n += varint.Int.Marshal(c.Added, bs[n:])
	n += varint.Int.Marshal(c.Updated, bs[n:])
	n += varint.Int.Marshal(c.Unchanged, bs[n:])
	n += varint.Int.Marshal(c.Deleted, bs[n:])
	n += varint.Int.Marshal(c.Errors, bs[n:])
	return n
}

func unmarshalCounts(c *core.Counts, bs []byte) (n int, err error) {
	var m int
	if c.Fetched, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return n, err
	}
	n += m
	if c.Added, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return n, err
	}
	n += m
	if c.Updated, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return n, err
	}
	n += m
	if c.Unchanged, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return n, err
	}
	n += m
	if c.Deleted, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return n, err
	}
	n += m
	if c.Errors, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return n, err
	}
	n += m
	return n, nil
}

// Time. Zero times are stored as a sentinel so they round-trip exactly.

const zeroTimeSentinel = math.MinInt64

func sizeTime(t time.Time) int {
	return varint.Int64.Size(timeToMicro(t))
}

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(timeToMicro(t), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micro, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	if micro == zeroTimeSentinel {
		return time.Time{}, n, nil
	}
	return time.UnixMicro(micro).UTC(), n, nil
}

func timeToMicro(t time.Time) int64 {
	if t.IsZero() {
		return zeroTimeSentinel
	}
	return t.UTC().UnixMicro()
}
