package domain

// TorrentStats is the mutable transfer accounting of a torrent. Rates are
// bytes per second. Progress is in [0, 1].
type TorrentStats struct {
	DownloadedBytes int64   `json:"downloadedBytes"`
	UploadedBytes   int64   `json:"uploadedBytes"`
	DownloadRate    int64   `json:"downloadRate"`
	UploadRate      int64   `json:"uploadRate"`
	Progress        float64 `json:"progress"`
	Peers           int     `json:"peers"`
	Seeds           int     `json:"seeds"`
}

// TorrentSnapshot is a point-in-time copy of a registered torrent.
type TorrentSnapshot struct {
	Metadata TorrentMetadata `json:"metadata"`
	Stats    TorrentStats    `json:"stats"`
	Paused   bool            `json:"paused"`
	Status   TorrentStatus   `json:"status"`
	Error    string          `json:"error,omitempty"`
}
