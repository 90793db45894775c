package main

import (
	"context"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
	"torrentsession/internal/events"
	"torrentsession/internal/metrics"
)

// engineMetricsSink refreshes the torrent gauges on every progress or
// lifecycle event instead of polling the engine on a timer.
func engineMetricsSink(engine ports.Engine) events.SinkFunc {
	return events.SinkFunc{
		SinkName: "metrics",
		Fn: func(ctx context.Context, _ domain.Event) error {
			observeSnapshots(engine.List(ctx))
			return nil
		},
	}
}

var allStatuses = []domain.TorrentStatus{
	domain.TorrentDownloading,
	domain.TorrentPaused,
	domain.TorrentCompleted,
	domain.TorrentError,
}

func observeSnapshots(snaps []domain.TorrentSnapshot) {
	counts := make(map[domain.TorrentStatus]int, len(allStatuses))
	var dl, ul int64
	var peers int
	for _, s := range snaps {
		counts[s.Status]++
		if s.Status == domain.TorrentDownloading {
			dl += s.Stats.DownloadRate
			ul += s.Stats.UploadRate
			peers += s.Stats.Peers
		}
	}
	for _, status := range allStatuses {
		metrics.Torrents.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	metrics.DownloadSpeedBytes.Set(float64(dl))
	metrics.UploadSpeedBytes.Set(float64(ul))
	metrics.PeersConnected.Set(float64(peers))
}
