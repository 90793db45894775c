package engine

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"torrentsession/internal/domain"
	"torrentsession/internal/metrics"
	"torrentsession/internal/services/torrent/registry"
)

const DefaultInterval = time.Second

// completionEpsilon absorbs float drift from summing fixed increments.
const completionEpsilon = 1e-9

// Reporter periodically advances every active torrent and emits Progress,
// followed by Completed on the tick that reaches 1.0.
type Reporter struct {
	engine   *Engine
	interval time.Duration
	source   TransferSource
	logger   *slog.Logger
}

func NewReporter(e *Engine, interval time.Duration, source TransferSource, logger *slog.Logger) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if source == nil {
		source = SimulatedTransfer{Increment: DefaultIncrement}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{engine: e, interval: interval, source: source, logger: logger}
}

func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick runs one reporting pass. Handles are looked up afresh by id, so a
// torrent removed mid-pass is skipped.
func (r *Reporter) Tick() {
	start := time.Now()
	defer func() {
		metrics.ReporterTickDuration.Observe(time.Since(start).Seconds())
	}()

	now := r.engine.cfg.Now()
	var advanced int
	for _, id := range r.engine.reg.IDs() {
		err := r.engine.reg.Mutate(id, func(h *registry.Handle) error {
			if r.advance(h, now) {
				advanced++
			}
			return nil
		})
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("progress update failed",
				slog.String("torrentId", string(id)),
				slog.String("error", err.Error()),
			)
		}
	}
	if advanced > 0 {
		r.logger.Debug("progress tick", slog.Int("advanced", advanced))
	}
}

// advance applies one step to a locked handle. It reports whether the handle
// was eligible.
func (r *Reporter) advance(h *registry.Handle, now time.Time) bool {
	if h.Paused || h.Err != "" || h.Stats.Progress >= 1 {
		return false
	}

	prev := h.Stats
	next := normalize(h.Metadata, prev, r.source.Advance(h.Metadata.Clone(), prev))
	h.Stats = next

	r.engine.events.Publish(domain.ProgressEvent(h.Metadata.ID, next, now))
	if next.Progress >= 1 {
		r.engine.events.Publish(domain.CompletedEvent(h.Metadata.ID, now))
		r.logger.Info("torrent completed", slog.String("torrentId", string(h.Metadata.ID)))
	}
	return true
}

// normalize keeps stats invariant whatever the source returned. Progress is
// monotonic and capped at 1; DownloadedBytes is derived from it.
func normalize(meta domain.TorrentMetadata, prev, next domain.TorrentStats) domain.TorrentStats {
	p := next.Progress
	if math.IsNaN(p) || p < prev.Progress {
		p = prev.Progress
	}
	if p > 1 || 1-p < completionEpsilon {
		p = 1
	}
	next.Progress = p
	next.DownloadedBytes = int64(math.Round(float64(meta.TotalBytes) * p))

	if next.UploadedBytes < prev.UploadedBytes {
		next.UploadedBytes = prev.UploadedBytes
	}
	next.DownloadRate = max(next.DownloadRate, 0)
	next.UploadRate = max(next.UploadRate, 0)
	next.Peers = max(next.Peers, 0)
	next.Seeds = max(next.Seeds, 0)
	return next
}
