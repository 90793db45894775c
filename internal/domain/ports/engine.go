package ports

import (
	"context"

	"torrentsession/internal/domain"
)

// Engine is the lifecycle surface of the torrent session engine. Every
// mutating call either succeeds and emits exactly one event or fails and
// leaves the registry untouched. RestoreStats is the exception: it seeds the
// counters of a re-admitted torrent and emits nothing.
type Engine interface {
	Resolve(ctx context.Context, src domain.TorrentSource) (domain.TorrentMetadata, error)
	AddMagnet(ctx context.Context, uri string) (domain.TorrentID, error)
	AddFile(ctx context.Context, data []byte) (domain.TorrentID, error)
	RestoreStats(id domain.TorrentID, stats domain.TorrentStats) error
	Pause(ctx context.Context, id domain.TorrentID) error
	Resume(ctx context.Context, id domain.TorrentID) error
	Remove(ctx context.Context, id domain.TorrentID) error
	Fail(id domain.TorrentID, reason string) error
	Get(ctx context.Context, id domain.TorrentID) (domain.TorrentSnapshot, error)
	List(ctx context.Context) []domain.TorrentSnapshot
}

// EventSink receives every engine event in emission order.
type EventSink interface {
	Name() string
	Handle(ctx context.Context, ev domain.Event) error
}
