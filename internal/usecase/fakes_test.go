package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"torrentsession/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEngine struct {
	snapshots map[domain.TorrentID]domain.TorrentSnapshot
	order     []domain.TorrentID

	resolveErr error
	addErr     error
	pauseErr   error
	removeErr  error

	added    []domain.TorrentSource
	restored map[domain.TorrentID]domain.TorrentStats
	paused   []domain.TorrentID
	resumed  []domain.TorrentID
	removed  []domain.TorrentID
	failed   map[domain.TorrentID]string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		snapshots: make(map[domain.TorrentID]domain.TorrentSnapshot),
		failed:    make(map[domain.TorrentID]string),
		restored:  make(map[domain.TorrentID]domain.TorrentStats),
	}
}

func (f *fakeEngine) put(snap domain.TorrentSnapshot) {
	if _, ok := f.snapshots[snap.Metadata.ID]; !ok {
		f.order = append(f.order, snap.Metadata.ID)
	}
	f.snapshots[snap.Metadata.ID] = snap
}

func (f *fakeEngine) add(id domain.TorrentID, src domain.TorrentSource) (domain.TorrentID, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	if _, ok := f.snapshots[id]; ok {
		return "", fmt.Errorf("%w: %s", domain.ErrDuplicateIdentifier, id)
	}
	f.added = append(f.added, src)
	f.put(domain.TorrentSnapshot{
		Metadata: domain.TorrentMetadata{ID: id, Name: "name-" + string(id), TotalBytes: 100},
		Status:   domain.TorrentDownloading,
	})
	return id, nil
}

// Magnets are "magnet:<id>" and metadata bytes are the id itself.
func sourceID(src domain.TorrentSource) domain.TorrentID {
	if src.Magnet != "" {
		return domain.TorrentID(strings.TrimPrefix(src.Magnet, "magnet:"))
	}
	return domain.TorrentID(src.Metadata)
}

func (f *fakeEngine) Resolve(_ context.Context, src domain.TorrentSource) (domain.TorrentMetadata, error) {
	if f.resolveErr != nil {
		return domain.TorrentMetadata{}, f.resolveErr
	}
	id := sourceID(src)
	return domain.TorrentMetadata{ID: id, Name: "name-" + string(id), TotalBytes: 100}, nil
}

func (f *fakeEngine) AddMagnet(_ context.Context, uri string) (domain.TorrentID, error) {
	src := domain.TorrentSource{Magnet: uri}
	return f.add(sourceID(src), src)
}

func (f *fakeEngine) AddFile(_ context.Context, data []byte) (domain.TorrentID, error) {
	src := domain.TorrentSource{Metadata: data}
	return f.add(sourceID(src), src)
}

func (f *fakeEngine) RestoreStats(id domain.TorrentID, stats domain.TorrentStats) error {
	snap, ok := f.snapshots[id]
	if !ok {
		return domain.ErrNotFound
	}
	snap.Stats = stats
	snap.Status = domain.DeriveStatus(snap.Paused, stats.Progress, snap.Error)
	f.snapshots[id] = snap
	f.restored[id] = stats
	return nil
}

func (f *fakeEngine) Pause(_ context.Context, id domain.TorrentID) error {
	if f.pauseErr != nil {
		return f.pauseErr
	}
	snap, ok := f.snapshots[id]
	if !ok {
		return domain.ErrNotFound
	}
	snap.Paused = true
	snap.Status = domain.TorrentPaused
	f.snapshots[id] = snap
	f.paused = append(f.paused, id)
	return nil
}

func (f *fakeEngine) Resume(_ context.Context, id domain.TorrentID) error {
	snap, ok := f.snapshots[id]
	if !ok {
		return domain.ErrNotFound
	}
	snap.Paused = false
	snap.Status = domain.TorrentDownloading
	f.snapshots[id] = snap
	f.resumed = append(f.resumed, id)
	return nil
}

func (f *fakeEngine) Remove(_ context.Context, id domain.TorrentID) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	if _, ok := f.snapshots[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.snapshots, id)
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeEngine) Fail(id domain.TorrentID, reason string) error {
	snap, ok := f.snapshots[id]
	if !ok {
		return domain.ErrNotFound
	}
	snap.Status = domain.TorrentError
	snap.Error = reason
	f.snapshots[id] = snap
	f.failed[id] = reason
	return nil
}

func (f *fakeEngine) Get(_ context.Context, id domain.TorrentID) (domain.TorrentSnapshot, error) {
	snap, ok := f.snapshots[id]
	if !ok {
		return domain.TorrentSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (f *fakeEngine) List(context.Context) []domain.TorrentSnapshot {
	out := make([]domain.TorrentSnapshot, 0, len(f.snapshots))
	for _, id := range f.order {
		if snap, ok := f.snapshots[id]; ok {
			out = append(out, snap)
		}
	}
	return out
}

type fakeRepo struct {
	records map[domain.TorrentID]domain.TorrentRecord

	createErr   error
	updateErr   error
	deleteErr   error
	listErr     error
	progressErr error

	progress map[domain.TorrentID]domain.ProgressUpdate
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records:  make(map[domain.TorrentID]domain.TorrentRecord),
		progress: make(map[domain.TorrentID]domain.ProgressUpdate),
	}
}

func (f *fakeRepo) Create(_ context.Context, r domain.TorrentRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.records[r.ID] = r
	return nil
}

func (f *fakeRepo) Update(_ context.Context, r domain.TorrentRecord) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.records[r.ID]; !ok {
		return domain.ErrNotFound
	}
	f.records[r.ID] = r
	return nil
}

func (f *fakeRepo) UpdateProgress(_ context.Context, id domain.TorrentID, u domain.ProgressUpdate) error {
	if f.progressErr != nil {
		return f.progressErr
	}
	if _, ok := f.records[id]; !ok {
		return domain.ErrNotFound
	}
	f.progress[id] = u
	return nil
}

func (f *fakeRepo) Get(_ context.Context, id domain.TorrentID) (domain.TorrentRecord, error) {
	r, ok := f.records[id]
	if !ok {
		return domain.TorrentRecord{}, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeRepo) List(_ context.Context, _ domain.TorrentFilter) ([]domain.TorrentRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.TorrentRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) Delete(_ context.Context, id domain.TorrentID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.records, id)
	return nil
}
