package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
)

type CreateTorrent struct {
	Engine ports.Engine
	Repo   ports.TorrentRepository
	Logger *slog.Logger
	Now    func() time.Time
}

// CreateTorrentInput names exactly one admission source.
type CreateTorrentInput struct {
	Magnet   string
	Metadata []byte
}

func (in CreateTorrentInput) source() (domain.TorrentSource, error) {
	magnet := strings.TrimSpace(in.Magnet)
	hasMagnet := magnet != ""
	hasMetadata := len(in.Metadata) > 0
	if hasMagnet == hasMetadata {
		return domain.TorrentSource{}, ErrInvalidSource
	}
	return domain.TorrentSource{Magnet: magnet, Metadata: in.Metadata}, nil
}

// Execute resolves the source, stores its record and only then admits the
// torrent, so the event feed never sees an admission that did not stick. If
// admission fails the record is deleted again.
func (uc CreateTorrent) Execute(ctx context.Context, input CreateTorrentInput) (domain.TorrentSnapshot, error) {
	src, err := input.source()
	if err != nil {
		return domain.TorrentSnapshot{}, err
	}

	now := time.Now
	if uc.Now != nil {
		now = uc.Now
	}

	meta, err := uc.Engine.Resolve(ctx, src)
	if err != nil {
		return domain.TorrentSnapshot{}, wrapEngine(err)
	}
	if _, err := uc.Engine.Get(ctx, meta.ID); err == nil {
		return domain.TorrentSnapshot{}, wrapEngine(fmt.Errorf("%w: %s", domain.ErrDuplicateIdentifier, meta.ID))
	}

	record := domain.RecordFromMetadata(meta, src, now().UTC())
	if err := uc.Repo.Create(ctx, record); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentifier) {
			return domain.TorrentSnapshot{}, fmt.Errorf("%w: %w", ErrRepository, err)
		}
		return domain.TorrentSnapshot{}, wrapRepo(err)
	}

	id, err := admit(ctx, uc.Engine, src)
	if err != nil {
		if rmErr := uc.Repo.Delete(context.WithoutCancel(ctx), meta.ID); rmErr != nil && uc.Logger != nil {
			uc.Logger.Error("create: record rollback failed",
				slog.String("torrentId", string(meta.ID)),
				slog.String("error", rmErr.Error()),
			)
		}
		return domain.TorrentSnapshot{}, wrapEngine(err)
	}

	snap, err := uc.Engine.Get(ctx, id)
	if err != nil {
		return domain.TorrentSnapshot{}, wrapEngine(err)
	}
	return snap, nil
}

func admit(ctx context.Context, engine ports.Engine, src domain.TorrentSource) (domain.TorrentID, error) {
	if src.Magnet != "" {
		return engine.AddMagnet(ctx, src.Magnet)
	}
	return engine.AddFile(ctx, src.Metadata)
}
