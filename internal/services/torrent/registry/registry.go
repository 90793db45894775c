// Package registry holds the authoritative set of admitted torrents.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"torrentsession/internal/domain"
)

// Handle is the mutable runtime record of one admitted torrent. Handles never
// leave the registry; callbacks receive a pointer that is only valid for the
// duration of the call.
type Handle struct {
	Metadata domain.TorrentMetadata
	Stats    domain.TorrentStats
	Paused   bool
	// Err is the reason of an unrecoverable failure. Once set the handle no
	// longer advances.
	Err string

	seq uint64
}

func (h *Handle) Status() domain.TorrentStatus {
	return domain.DeriveStatus(h.Paused, h.Stats.Progress, h.Err)
}

func (h *Handle) Snapshot() domain.TorrentSnapshot {
	return domain.TorrentSnapshot{
		Metadata: h.Metadata.Clone(),
		Stats:    h.Stats,
		Paused:   h.Paused,
		Status:   h.Status(),
		Error:    h.Err,
	}
}

type Registry struct {
	mu      sync.RWMutex
	handles map[domain.TorrentID]*Handle
	nextSeq uint64
}

func New() *Registry {
	return &Registry{handles: make(map[domain.TorrentID]*Handle)}
}

// Insert creates a handle with zeroed stats. limit caps the number of handles;
// zero or negative means unlimited.
func (r *Registry) Insert(meta domain.TorrentMetadata, limit int) error {
	return r.InsertWith(meta, limit, nil)
}

// InsertWith is Insert with fn run on the new handle before the lock is
// released.
func (r *Registry) InsertWith(meta domain.TorrentMetadata, limit int, fn func(*Handle)) error {
	if meta.ID == "" {
		return domain.ErrInvalidIdentifier
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[meta.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateIdentifier, meta.ID)
	}
	if limit > 0 && len(r.handles) >= limit {
		return fmt.Errorf("%w: limit %d", domain.ErrCapacityExceeded, limit)
	}

	r.nextSeq++
	h := &Handle{Metadata: meta.Clone(), seq: r.nextSeq}
	r.handles[meta.ID] = h
	if fn != nil {
		fn(h)
	}
	return nil
}

// Mutate runs fn with exclusive access to the handle. fn must validate before
// changing anything: an error is returned to the caller as is and the
// registry does not undo partial writes.
func (r *Registry) Mutate(id domain.TorrentID, fn func(*Handle) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return fn(h)
}

func (r *Registry) Get(id domain.TorrentID) (domain.TorrentSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[id]
	if !ok {
		return domain.TorrentSnapshot{}, false
	}
	return h.Snapshot(), true
}

func (r *Registry) Remove(id domain.TorrentID) error {
	return r.RemoveWith(id, nil)
}

// RemoveWith deletes the handle and runs fn with its final snapshot before the
// lock is released.
func (r *Registry) RemoveWith(id domain.TorrentID, fn func(domain.TorrentSnapshot)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	delete(r.handles, id)
	if fn != nil {
		fn(h.Snapshot())
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// IDs returns identifiers in admission order.
func (r *Registry) IDs() []domain.TorrentID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := r.orderedLocked()
	ids := make([]domain.TorrentID, len(ordered))
	for i, h := range ordered {
		ids[i] = h.Metadata.ID
	}
	return ids
}

// List returns snapshots in admission order.
func (r *Registry) List() []domain.TorrentSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := r.orderedLocked()
	out := make([]domain.TorrentSnapshot, len(ordered))
	for i, h := range ordered {
		out[i] = h.Snapshot()
	}
	return out
}

func (r *Registry) orderedLocked() []*Handle {
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}
