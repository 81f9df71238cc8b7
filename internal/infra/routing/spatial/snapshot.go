package spatial

import (
	"sync/atomic"
	"time"
)

// Snapshot is one immutable generation of the station catalog.
type Snapshot struct {
	Version  uint64
	LoadedAt time.Time
	Source   string // Where the stations were read from.
	Skipped  int    // Records dropped during load.
	Index    *KDTree
}

// Holder publishes catalog snapshots. Readers grab the current snapshot once per
// request and keep using it even if a newer one is published meanwhile.
type Holder struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
}

// NewHolder creates an empty holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Publish wraps index in a new snapshot and makes it visible to new readers.
func (h *Holder) Publish(index *KDTree, source string, skipped int) *Snapshot {
	snap := &Snapshot{
		Version:  h.version.Add(1),
		LoadedAt: time.Now(),
		Source:   source,
		Skipped:  skipped,
		Index:    index,
	}
	h.current.Store(snap)

	return snap
}

// Current returns the latest published snapshot, or false before the first Publish.
func (h *Holder) Current() (*Snapshot, bool) {
	snap := h.current.Load()

	return snap, snap != nil
}
