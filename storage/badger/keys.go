package badger

import (
	"encoding/binary"
	"time"
)

// Key prefixes for different data types. Tenant, platform and object
// type never contain ':' or '/' (enforced by core validation), so the
// composite keys below are unambiguous.
const (
	objectPrefix    = "obj"
	runPrefix       = "run"
	runIndexPrefix  = "runidx"
	progressPrefix  = "prog"
	syncStatePrefix = "syncst"
)

// makeObjectKey generates a key for an object by its scope and UID.
func makeObjectKey(tenantID, platform, uid string) []byte {
	return []byte(objectPrefix + ":" + tenantID + ":" + platform + ":" + uid)
}

// makeObjectScopePrefix generates the key prefix covering every object
// of a (tenant, platform) pair.
func makeObjectScopePrefix(tenantID, platform string) []byte {
	return []byte(objectPrefix + ":" + tenantID + ":" + platform + ":")
}

// makeRunKey generates a key for a run by ID.
func makeRunKey(runID string) []byte {
	return []byte(runPrefix + ":" + runID)
}

// makeRunIndexKey generates a composite key for the per-tenant run
// index. The start time is written BigEndian so lexicographic order is
// chronological order.
func makeRunIndexKey(tenantID, platform string, startedAt time.Time, runID string) []byte {
	prefix := makeRunIndexPrefix(tenantID, platform)
	buf := make([]byte, len(prefix)+8+1+len(runID))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(startedAt.UTC().UnixMicro()))
	offset += 8
	buf[offset] = ':'
	offset++
	copy(buf[offset:], runID)
	return buf
}

// makeRunIndexPrefix generates the key prefix covering every run of a
// (tenant, platform) pair.
func makeRunIndexPrefix(tenantID, platform string) []byte {
	return []byte(runIndexPrefix + ":" + tenantID + ":" + platform + ":")
}

// makeProgressKey generates a key for a run's resumable checkpoint.
func makeProgressKey(runID string) []byte {
	return []byte(progressPrefix + ":" + runID)
}

// makeSyncStateKey generates a key for a (tenant, platform) sync state.
func makeSyncStateKey(tenantID, platform string) []byte {
	return []byte(syncStatePrefix + ":" + tenantID + ":" + platform)
}
