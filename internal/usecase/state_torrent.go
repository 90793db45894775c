package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
)

type GetTorrentState struct {
	Engine ports.Engine
}

func (uc GetTorrentState) Execute(ctx context.Context, id domain.TorrentID) (domain.TorrentSnapshot, error) {
	if uc.Engine == nil {
		return domain.TorrentSnapshot{}, errors.New("engine not configured")
	}
	snap, err := uc.Engine.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TorrentSnapshot{}, err
		}
		return domain.TorrentSnapshot{}, wrapEngine(err)
	}
	return snap, nil
}

type ListTorrentStates struct {
	Engine ports.Engine
}

// Execute returns snapshots in admission order unless filter.SortBy names a
// field ("name", "progress", "totalBytes").
func (uc ListTorrentStates) Execute(ctx context.Context, filter domain.TorrentFilter) ([]domain.TorrentSnapshot, error) {
	if uc.Engine == nil {
		return nil, errors.New("engine not configured")
	}
	all := uc.Engine.List(ctx)

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]domain.TorrentSnapshot, 0, len(all))
	for _, snap := range all {
		if filter.Status != nil && snap.Status != *filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(snap.Metadata.Name), search) {
			continue
		}
		out = append(out, snap)
	}

	if less := snapshotLess(filter.SortBy); less != nil {
		desc := filter.SortOrder == domain.SortDesc
		sort.SliceStable(out, func(i, j int) bool {
			if desc {
				return less(out[j], out[i])
			}
			return less(out[i], out[j])
		})
	} else if filter.SortOrder == domain.SortDesc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []domain.TorrentSnapshot{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func snapshotLess(field string) func(a, b domain.TorrentSnapshot) bool {
	switch field {
	case "name":
		return func(a, b domain.TorrentSnapshot) bool {
			return strings.ToLower(a.Metadata.Name) < strings.ToLower(b.Metadata.Name)
		}
	case "progress":
		return func(a, b domain.TorrentSnapshot) bool { return a.Stats.Progress < b.Stats.Progress }
	case "totalBytes":
		return func(a, b domain.TorrentSnapshot) bool { return a.Metadata.TotalBytes < b.Metadata.TotalBytes }
	}
	return nil
}
