package domain

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// TorrentFilter narrows the live list and the stored records.
type TorrentFilter struct {
	Status *TorrentStatus `json:"status,omitempty"`
	// Search is a case-insensitive substring matched against the torrent
	// name only.
	Search    string    `json:"search,omitempty"`
	SortBy    string    `json:"sortBy,omitempty"`
	SortOrder SortOrder `json:"sortOrder,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
}
