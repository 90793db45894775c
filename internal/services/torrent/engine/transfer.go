package engine

import "torrentsession/internal/domain"

// TransferSource produces the next stats of an active torrent. It is where a
// real piece-download layer plugs in; the reporter normalizes whatever it
// returns and owns event emission.
type TransferSource interface {
	Advance(meta domain.TorrentMetadata, prev domain.TorrentStats) domain.TorrentStats
}

const DefaultIncrement = 0.01

// SimulatedTransfer advances progress by a fixed step per tick and cycles
// rate and swarm counters.
type SimulatedTransfer struct {
	Increment float64
}

func (s SimulatedTransfer) Advance(_ domain.TorrentMetadata, prev domain.TorrentStats) domain.TorrentStats {
	step := s.Increment
	if step <= 0 {
		step = DefaultIncrement
	}
	next := prev
	next.Progress = prev.Progress + step
	next.DownloadRate = (prev.DownloadRate + 1024) % (1024 * 1024)
	next.UploadRate = (prev.UploadRate + 512) % (512 * 1024)
	next.UploadedBytes = prev.UploadedBytes + next.UploadRate
	next.Peers = prev.Peers%50 + 1
	next.Seeds = prev.Seeds%20 + 1
	return next
}
