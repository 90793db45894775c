package usecase

import (
	"context"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
)

// The persisted status follows from the Paused and Resumed events handled by
// RecordSink, so the control use cases only drive the engine.

type PauseTorrent struct {
	Engine ports.Engine
}

func (uc PauseTorrent) Execute(ctx context.Context, id domain.TorrentID) (domain.TorrentSnapshot, error) {
	if err := uc.Engine.Pause(ctx, id); err != nil {
		return domain.TorrentSnapshot{}, wrapEngine(err)
	}
	return currentState(ctx, uc.Engine, id)
}

type ResumeTorrent struct {
	Engine ports.Engine
}

func (uc ResumeTorrent) Execute(ctx context.Context, id domain.TorrentID) (domain.TorrentSnapshot, error) {
	if err := uc.Engine.Resume(ctx, id); err != nil {
		return domain.TorrentSnapshot{}, wrapEngine(err)
	}
	return currentState(ctx, uc.Engine, id)
}

func currentState(ctx context.Context, engine ports.Engine, id domain.TorrentID) (domain.TorrentSnapshot, error) {
	snap, err := engine.Get(ctx, id)
	if err != nil {
		return domain.TorrentSnapshot{}, wrapEngine(err)
	}
	return snap, nil
}
