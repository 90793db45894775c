package domain

// TorrentID is the canonical identifier of a torrent: the lowercase hex
// encoding of its 20-byte v1 info hash.
type TorrentID string

// TorrentMetadata describes a torrent's content. It is never mutated after
// construction; Clone returns an independent copy for handing to callers.
type TorrentMetadata struct {
	ID         TorrentID   `json:"id"`
	Name       string      `json:"name"`
	TotalBytes int64       `json:"totalBytes"`
	Announce   []string    `json:"announce"`
	Files      []FileEntry `json:"files"`
	// Pending is set for magnet admissions whose info dictionary has not
	// been fetched yet. Name is a placeholder and TotalBytes is zero.
	Pending bool `json:"pending,omitempty"`
}

func (m TorrentMetadata) Clone() TorrentMetadata {
	out := m
	out.Announce = append([]string(nil), m.Announce...)
	out.Files = append([]FileEntry(nil), m.Files...)
	return out
}

func sumFileLengths(files []FileEntry) int64 {
	var total int64
	for _, f := range files {
		total += f.Length
	}
	return total
}

// Consistent reports whether TotalBytes matches the sum of file lengths and
// no length is negative.
func (m TorrentMetadata) Consistent() bool {
	for _, f := range m.Files {
		if f.Length < 0 {
			return false
		}
	}
	return m.TotalBytes == sumFileLengths(m.Files)
}
