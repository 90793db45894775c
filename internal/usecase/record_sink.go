package usecase

import (
	"context"
	"errors"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
)

// RecordSink persists status changes as soon as the engine reports them.
// Progress events are left to SyncState so a busy reporter does not turn into
// one write per tick.
type RecordSink struct {
	Engine ports.Engine
	Repo   ports.TorrentRepository
}

func (RecordSink) Name() string { return "records" }

func (s RecordSink) Handle(ctx context.Context, ev domain.Event) error {
	switch ev.Kind {
	case domain.EventPaused, domain.EventResumed, domain.EventCompleted, domain.EventError:
	default:
		return nil
	}

	snap, err := s.Engine.Get(ctx, ev.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return wrapEngine(err)
	}
	if err := s.Repo.UpdateProgress(ctx, ev.ID, progressUpdate(snap)); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return wrapRepo(err)
	}
	return nil
}
