// Package engine is the lifecycle controller and progress reporter of the
// torrent session engine.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"torrentsession/internal/domain"
	"torrentsession/internal/events"
	"torrentsession/internal/metrics"
	"torrentsession/internal/services/torrent/metainfo"
	"torrentsession/internal/services/torrent/registry"
)

// Config carries the engine settings supplied by the host. Only MaxTorrents
// is enforced here; the rest is read by transfer layers and the API.
type Config struct {
	DownloadDir        string
	MaxTorrents        int // 0 = unlimited
	MaxPeersPerTorrent int
	ListenPort         int
	EnableDHT          bool
	EnableUPnP         bool
	UploadLimitKBps    int64 // 0 = unlimited
	DownloadLimitKBps  int64 // 0 = unlimited
	SeedRatioLimit     float64
	SeedTimeLimit      time.Duration

	// Now stamps events. Defaults to time.Now.
	Now func() time.Time
}

type Engine struct {
	cfg    Config
	reg    *registry.Registry
	events *events.Channel
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		reg:    registry.New(),
		events: events.NewChannel(),
		logger: logger,
	}
}

// Events is the ordered stream of everything the engine does.
func (e *Engine) Events() *events.Channel {
	return e.events
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Close stops event emission. Queued events are still delivered.
func (e *Engine) Close() {
	e.events.Close()
}

// Len is the number of registered torrents.
func (e *Engine) Len() int {
	return e.reg.Len()
}

// ---------------------------------------------------------------------------
// Admission
// ---------------------------------------------------------------------------

// Resolve derives the metadata src would be admitted with without registering
// anything. Failures carry the same sentinels as AddMagnet and AddFile.
func (e *Engine) Resolve(ctx context.Context, src domain.TorrentSource) (domain.TorrentMetadata, error) {
	if err := ctx.Err(); err != nil {
		return domain.TorrentMetadata{}, err
	}
	if src.Magnet != "" {
		return metainfo.ParseMagnet(src.Magnet)
	}
	return metainfo.Parse(src.Metadata)
}

func (e *Engine) AddMagnet(ctx context.Context, uri string) (domain.TorrentID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	meta, err := metainfo.ParseMagnet(uri)
	if err != nil {
		metrics.AdmissionsTotal.WithLabelValues("magnet", "rejected").Inc()
		return "", err
	}
	return e.admit(meta, "magnet")
}

func (e *Engine) AddFile(ctx context.Context, data []byte) (domain.TorrentID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	meta, err := metainfo.Parse(data)
	if err != nil {
		metrics.AdmissionsTotal.WithLabelValues("file", "rejected").Inc()
		return "", err
	}
	return e.admit(meta, "file")
}

// AddReader reads a whole metadata file from r and admits it.
func (e *Engine) AddReader(ctx context.Context, r io.Reader) (domain.TorrentID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	meta, err := metainfo.Decode(r)
	if err != nil {
		metrics.AdmissionsTotal.WithLabelValues("file", "rejected").Inc()
		return "", err
	}
	return e.admit(meta, "file")
}

func (e *Engine) admit(meta domain.TorrentMetadata, source string) (domain.TorrentID, error) {
	err := e.reg.InsertWith(meta, e.cfg.MaxTorrents, func(h *registry.Handle) {
		e.events.Publish(domain.AddedEvent(h.Metadata, e.cfg.Now()))
	})
	if err != nil {
		metrics.AdmissionsTotal.WithLabelValues(source, "rejected").Inc()
		return "", err
	}
	metrics.AdmissionsTotal.WithLabelValues(source, "admitted").Inc()
	e.logger.Info("torrent added",
		slog.String("torrentId", string(meta.ID)),
		slog.String("name", meta.Name),
		slog.String("source", source),
		slog.Int64("totalBytes", meta.TotalBytes),
	)
	return meta.ID, nil
}

// ---------------------------------------------------------------------------
// State machine
// ---------------------------------------------------------------------------

// transition validates a status change on a locked handle.
func transition(h *registry.Handle, to domain.TorrentStatus) error {
	from := h.Status()
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s for torrent %s", domain.ErrInvalidTransition, from, to, h.Metadata.ID)
	}
	return nil
}

// Pause stops progress advancement. Pausing a paused torrent succeeds and
// emits Paused again. An errored torrent cannot be paused and yields
// ErrInvalidTransition.
func (e *Engine) Pause(ctx context.Context, id domain.TorrentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := e.reg.Mutate(id, func(h *registry.Handle) error {
		if err := transition(h, domain.TorrentPaused); err != nil {
			return err
		}
		h.Paused = true
		e.events.Publish(domain.PausedEvent(id, e.cfg.Now()))
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("torrent paused", slog.String("torrentId", string(id)))
	return nil
}

// Resume clears the pause flag. Stats are left exactly as they were. Resuming
// an active torrent succeeds and emits Resumed again. An errored torrent
// cannot be resumed and yields ErrInvalidTransition.
func (e *Engine) Resume(ctx context.Context, id domain.TorrentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := e.reg.Mutate(id, func(h *registry.Handle) error {
		to := domain.DeriveStatus(false, h.Stats.Progress, "")
		if err := transition(h, to); err != nil {
			return err
		}
		h.Paused = false
		e.events.Publish(domain.ResumedEvent(id, e.cfg.Now()))
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("torrent resumed", slog.String("torrentId", string(id)))
	return nil
}

// RestoreStats seeds the counters of a torrent re-admitted after a restart.
// Progress and uploaded bytes never go down and transient rates start at
// zero. Nothing is emitted: the stored record already holds this state.
func (e *Engine) RestoreStats(id domain.TorrentID, stats domain.TorrentStats) error {
	return e.reg.Mutate(id, func(h *registry.Handle) error {
		next := normalize(h.Metadata, h.Stats, domain.TorrentStats{
			Progress:      stats.Progress,
			UploadedBytes: stats.UploadedBytes,
		})
		if h.Metadata.TotalBytes == 0 {
			// Pending magnet metadata: the byte count cannot be derived.
			next.DownloadedBytes = max(stats.DownloadedBytes, h.Stats.DownloadedBytes, 0)
		}
		h.Stats = next
		return nil
	})
}

// Remove destroys the handle. No event for id is emitted after Removed.
func (e *Engine) Remove(ctx context.Context, id domain.TorrentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := e.reg.RemoveWith(id, func(domain.TorrentSnapshot) {
		e.events.Publish(domain.RemovedEvent(id, e.cfg.Now()))
	})
	if err != nil {
		return err
	}
	e.logger.Info("torrent removed", slog.String("torrentId", string(id)))
	return nil
}

// Fail moves an admitted torrent into the error state. It is the entry point
// for failures found asynchronously by background transfer layers.
func (e *Engine) Fail(id domain.TorrentID, reason string) error {
	if reason == "" {
		reason = "unspecified failure"
	}
	err := e.reg.Mutate(id, func(h *registry.Handle) error {
		h.Err = reason
		e.events.Publish(domain.ErrorEvent(id, reason, e.cfg.Now()))
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Warn("torrent failed",
		slog.String("torrentId", string(id)),
		slog.String("reason", reason),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func (e *Engine) Get(ctx context.Context, id domain.TorrentID) (domain.TorrentSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.TorrentSnapshot{}, err
	}
	snap, ok := e.reg.Get(id)
	if !ok {
		return domain.TorrentSnapshot{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return snap, nil
}

func (e *Engine) List(ctx context.Context) []domain.TorrentSnapshot {
	return e.reg.List()
}
