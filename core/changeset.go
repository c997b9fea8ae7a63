package core

// ChangeSet classifies the UIDs of one sync run (or one batch of it)
// into added, updated, unchanged and deleted. The first three sets
// partition the incoming UIDs; deleted is computed separately at run
// end from the complete seen set. The sets are always disjoint.
type ChangeSet struct {
	Added     map[string]struct{}
	Updated   map[string]struct{}
	Unchanged map[string]struct{}
	Deleted   map[string]struct{}
}

// NewChangeSet creates an empty ChangeSet.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Added:     make(map[string]struct{}),
		Updated:   make(map[string]struct{}),
		Unchanged: make(map[string]struct{}),
		Deleted:   make(map[string]struct{}),
	}
}

// MarkAdded classifies a UID as added, removing any prior
// classification. Re-classification happens when the source returns
// the same ID on two pages of one run: last seen wins.
func (cs *ChangeSet) MarkAdded(uid string) {
	cs.remove(uid)
	cs.Added[uid] = struct{}{}
}

// MarkUpdated classifies a UID as updated.
func (cs *ChangeSet) MarkUpdated(uid string) {
	cs.remove(uid)
	cs.Updated[uid] = struct{}{}
}

// MarkUnchanged classifies a UID as unchanged.
func (cs *ChangeSet) MarkUnchanged(uid string) {
	cs.remove(uid)
	cs.Unchanged[uid] = struct{}{}
}

// MarkDeleted classifies a UID as deleted. A UID seen in this run can
// never be deleted by it, so seen classifications take precedence.
func (cs *ChangeSet) MarkDeleted(uid string) {
	if cs.contains(uid) {
		return
	}
	cs.Deleted[uid] = struct{}{}
}

// Merge folds a batch-scoped change set into a run-scoped one.
// Later batches win re-classification conflicts.
func (cs *ChangeSet) Merge(other *ChangeSet) {
	for uid := range other.Added {
		cs.MarkAdded(uid)
	}
	for uid := range other.Updated {
		cs.MarkUpdated(uid)
	}
	for uid := range other.Unchanged {
		cs.MarkUnchanged(uid)
	}
	for uid := range other.Deleted {
		cs.MarkDeleted(uid)
	}
}

// Seen reports whether the UID was observed in the incoming data
// (added, updated or unchanged).
func (cs *ChangeSet) Seen(uid string) bool {
	return cs.contains(uid)
}

func (cs *ChangeSet) contains(uid string) bool {
	if _, ok := cs.Added[uid]; ok {
		return true
	}
	if _, ok := cs.Updated[uid]; ok {
		return true
	}
	_, ok := cs.Unchanged[uid]
	return ok
}

func (cs *ChangeSet) remove(uid string) {
	delete(cs.Added, uid)
	delete(cs.Updated, uid)
	delete(cs.Unchanged, uid)
	delete(cs.Deleted, uid)
}
