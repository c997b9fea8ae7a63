package engine

import "github.com/meridianhq/syncline/core"

// Detector classifies incoming objects against the stored content
// hashes of their (tenant, platform) pair. It is stateless and safe
// for concurrent use.
type Detector struct{}

// NewDetector creates a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect classifies one batch of normalized objects: a UID absent from
// known is added, a UID with a differing hash is updated, a UID with an
// equal hash is unchanged. Deletions are never detected per batch; they
// are computed at run end from the complete seen set.
func (d *Detector) Detect(known map[string]string, batch []*core.IntegratedObject) *core.ChangeSet {
	cs := core.NewChangeSet()
	for _, obj := range batch {
		uid := obj.Key.UID()
		hash, ok := known[uid]
		switch {
		case !ok:
			cs.MarkAdded(uid)
		case hash != obj.ContentHash:
			cs.MarkUpdated(uid)
		default:
			cs.MarkUnchanged(uid)
		}
	}
	return cs
}
