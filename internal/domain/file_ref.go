package domain

// FileEntry is one file of a torrent. Path is relative to the torrent root
// and always uses '/' as separator.
type FileEntry struct {
	Path   string `json:"path"`
	Length int64  `json:"length"`
}
