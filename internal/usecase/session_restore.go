package usecase

import (
	"context"
	"errors"
	"log/slog"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
)

// SessionRestore re-admits every stored torrent after a restart, seeds its
// recorded counters and puts it back into its recorded pause or error state.
// It must run before the reporter starts ticking.
type SessionRestore struct {
	Engine ports.Engine
	Repo   ports.TorrentRepository
	Logger *slog.Logger
}

type RestoreResult struct {
	Restored int
	Skipped  int
	Failed   int
}

func (uc SessionRestore) Execute(ctx context.Context) (RestoreResult, error) {
	records, err := uc.Repo.List(ctx, domain.TorrentFilter{SortBy: "createdAt", SortOrder: domain.SortAsc})
	if err != nil {
		return RestoreResult{}, wrapRepo(err)
	}

	var res RestoreResult
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		switch err := uc.restore(ctx, record); {
		case err == nil:
			res.Restored++
		case errors.Is(err, domain.ErrDuplicateIdentifier):
			res.Skipped++
		default:
			res.Failed++
			uc.Logger.Warn("restore: torrent not restored",
				slog.String("torrentId", string(record.ID)),
				slog.String("error", err.Error()))
		}
	}
	return res, nil
}

var errMissingSource = errors.New("torrent source not available")

func (uc SessionRestore) restore(ctx context.Context, record domain.TorrentRecord) error {
	if record.Source.Magnet == "" && len(record.Source.Metadata) == 0 {
		return errMissingSource
	}
	id, err := admit(ctx, uc.Engine, record.Source)
	if err != nil {
		return err
	}
	if id != record.ID {
		uc.Logger.Warn("restore: stored id does not match source",
			slog.String("stored", string(record.ID)),
			slog.String("derived", string(id)))
	}

	if stats, ok := restoredStats(record); ok {
		if err := uc.Engine.RestoreStats(id, stats); err != nil {
			return err
		}
	}

	switch record.Status {
	case domain.TorrentPaused:
		return uc.Engine.Pause(ctx, id)
	case domain.TorrentError:
		return uc.Engine.Fail(id, "failed before restart")
	}
	return nil
}

// restoredStats reports the counters worth seeding from record. A completed
// record is restored as complete even if its progress lagged behind.
func restoredStats(record domain.TorrentRecord) (domain.TorrentStats, bool) {
	stats := domain.TorrentStats{
		Progress:        record.Progress,
		DownloadedBytes: record.DoneBytes,
		UploadedBytes:   record.UploadedBytes,
	}
	if record.Status == domain.TorrentCompleted {
		stats.Progress = 1
		stats.DownloadedBytes = max(stats.DownloadedBytes, record.TotalBytes)
	}
	return stats, stats != (domain.TorrentStats{})
}
