package usecase

import (
	"context"
	"errors"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
)

type DeleteTorrent struct {
	Engine ports.Engine
	Repo   ports.TorrentRepository
}

// Execute removes the torrent from the engine and deletes its record. A
// record left behind by an earlier failed restore is still deleted when the
// engine no longer knows the id.
func (uc DeleteTorrent) Execute(ctx context.Context, id domain.TorrentID) error {
	engineErr := uc.Engine.Remove(ctx, id)
	if engineErr != nil && !errors.Is(engineErr, domain.ErrNotFound) {
		return wrapEngine(engineErr)
	}

	repoErr := uc.Repo.Delete(ctx, id)
	switch {
	case repoErr == nil:
		return nil
	case errors.Is(repoErr, domain.ErrNotFound):
		if engineErr != nil {
			return engineErr
		}
		return nil
	default:
		return wrapRepo(repoErr)
	}
}
