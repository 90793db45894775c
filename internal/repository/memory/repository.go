// Package memory is a process-local TorrentRepository used when no MongoDB
// URI is configured. It mirrors the query semantics of the mongo repository.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"torrentsession/internal/domain"
)

type Repository struct {
	mu      sync.RWMutex
	records map[domain.TorrentID]domain.TorrentRecord
	now     func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		records: make(map[domain.TorrentID]domain.TorrentRecord),
		now:     time.Now,
	}
}

func (r *Repository) Create(ctx context.Context, t domain.TorrentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[t.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateIdentifier, t.ID)
	}
	r.records[t.ID] = cloneRecord(t)
	return nil
}

func (r *Repository) Update(ctx context.Context, t domain.TorrentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.records[t.ID]
	if !ok {
		return domain.ErrNotFound
	}
	next := cloneRecord(t)
	next.CreatedAt = existing.CreatedAt
	r.records[t.ID] = next
	return nil
}

// UpdateProgress never lowers the stored counters or progress.
func (r *Repository) UpdateProgress(ctx context.Context, id domain.TorrentID, update domain.ProgressUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.DoneBytes = max(rec.DoneBytes, update.DoneBytes)
	rec.UploadedBytes = max(rec.UploadedBytes, update.UploadedBytes)
	rec.Progress = max(rec.Progress, min(max(update.Progress, 0), 1))
	if update.Status != "" {
		rec.Status = update.Status
	}
	rec.UpdatedAt = r.now().UTC()
	r.records[id] = rec
	return nil
}

func (r *Repository) Get(ctx context.Context, id domain.TorrentID) (domain.TorrentRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.TorrentRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return domain.TorrentRecord{}, domain.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (r *Repository) List(ctx context.Context, filter domain.TorrentFilter) ([]domain.TorrentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	r.mu.RLock()
	out := make([]domain.TorrentRecord, 0, len(r.records))
	for _, rec := range r.records {
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(rec.Name), search) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	r.mu.RUnlock()

	less := lessFunc(strings.TrimSpace(filter.SortBy))
	desc := filter.SortOrder != domain.SortAsc
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case less(a, b):
			return !desc
		case less(b, a):
			return desc
		default:
			return a.ID < b.ID
		}
	})

	return paginate(out, filter.Offset, filter.Limit), nil
}

func (r *Repository) Delete(ctx context.Context, id domain.TorrentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

// Unknown sort fields fall back to updatedAt, as the mongo repository does.
func lessFunc(sortBy string) func(a, b domain.TorrentRecord) bool {
	switch sortBy {
	case "name":
		return func(a, b domain.TorrentRecord) bool { return a.Name < b.Name }
	case "createdAt":
		return func(a, b domain.TorrentRecord) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "totalBytes":
		return func(a, b domain.TorrentRecord) bool { return a.TotalBytes < b.TotalBytes }
	case "progress":
		return func(a, b domain.TorrentRecord) bool { return a.Progress < b.Progress }
	default:
		return func(a, b domain.TorrentRecord) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	}
}

func paginate(records []domain.TorrentRecord, offset, limit int) []domain.TorrentRecord {
	if offset > 0 {
		if offset >= len(records) {
			return []domain.TorrentRecord{}
		}
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

func cloneRecord(rec domain.TorrentRecord) domain.TorrentRecord {
	rec.Files = append([]domain.FileEntry{}, rec.Files...)
	if rec.Source.Metadata != nil {
		rec.Source.Metadata = append([]byte(nil), rec.Source.Metadata...)
	}
	return rec
}
