package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
)

// SyncState periodically copies engine stats into the stored records.
type SyncState struct {
	Engine   ports.Engine
	Repo     ports.TorrentRepository
	Logger   *slog.Logger
	Interval time.Duration
}

func (s SyncState) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sync(ctx)
		}
	}
}

func (s SyncState) sync(ctx context.Context) {
	for _, snap := range s.Engine.List(ctx) {
		err := s.Repo.UpdateProgress(ctx, snap.Metadata.ID, progressUpdate(snap))
		if err == nil || errors.Is(err, domain.ErrNotFound) {
			continue
		}
		s.Logger.Warn("sync: update progress failed",
			slog.String("torrentId", string(snap.Metadata.ID)),
			slog.String("error", err.Error()))
	}
}

func progressUpdate(snap domain.TorrentSnapshot) domain.ProgressUpdate {
	return domain.ProgressUpdate{
		DoneBytes:     snap.Stats.DownloadedBytes,
		UploadedBytes: snap.Stats.UploadedBytes,
		Progress:      snap.Stats.Progress,
		Status:        snap.Status,
	}
}
