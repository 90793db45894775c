package domain

type TorrentStatus string

const (
	TorrentDownloading TorrentStatus = "downloading"
	TorrentPaused      TorrentStatus = "paused"
	TorrentCompleted   TorrentStatus = "completed"
	TorrentError       TorrentStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s TorrentStatus) Valid() bool {
	switch s {
	case TorrentDownloading, TorrentPaused, TorrentCompleted, TorrentError:
		return true
	}
	return false
}
