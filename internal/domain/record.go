package domain

import (
	"errors"
	"time"
)

// TorrentSource is how a torrent was admitted. Exactly one field is set.
type TorrentSource struct {
	Magnet   string `json:"magnet,omitempty"`
	Metadata []byte `json:"-"`
}

// TorrentRecord is the persisted admission of a torrent used to restore the
// registry after a restart.
type TorrentRecord struct {
	ID            TorrentID     `json:"id"`
	Name          string        `json:"name"`
	Status        TorrentStatus `json:"status"`
	Source        TorrentSource `json:"-"`
	Files         []FileEntry   `json:"files"`
	TotalBytes    int64         `json:"totalBytes"`
	DoneBytes     int64         `json:"doneBytes"`
	UploadedBytes int64         `json:"uploadedBytes"`
	Progress      float64       `json:"progress"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// ProgressUpdate holds fields for an atomic progress update via $max.
type ProgressUpdate struct {
	DoneBytes     int64
	UploadedBytes int64
	Progress      float64
	Status        TorrentStatus
}

// Validate checks domain invariants for TorrentRecord.
func (r TorrentRecord) Validate() error {
	if r.ID == "" {
		return errors.New("torrent id is required")
	}
	if r.TotalBytes < 0 {
		return errors.New("totalBytes must not be negative")
	}
	if r.DoneBytes < 0 {
		return errors.New("doneBytes must not be negative")
	}
	if r.TotalBytes > 0 && r.DoneBytes > r.TotalBytes {
		return errors.New("doneBytes must not exceed totalBytes")
	}
	if r.Progress < 0 || r.Progress > 1 {
		return errors.New("progress must be within [0, 1]")
	}
	hasMagnet := r.Source.Magnet != ""
	hasMetadata := len(r.Source.Metadata) > 0
	if hasMagnet == hasMetadata {
		return errors.New("exactly one torrent source is required")
	}
	switch {
	case r.Status == "":
		return errors.New("status is required")
	case !r.Status.Valid():
		return errors.New("invalid status: " + string(r.Status))
	}
	return nil
}

// RecordFromMetadata builds the initial record for a freshly admitted torrent.
func RecordFromMetadata(meta TorrentMetadata, src TorrentSource, now time.Time) TorrentRecord {
	return TorrentRecord{
		ID:         meta.ID,
		Name:       meta.Name,
		Status:     TorrentDownloading,
		Source:     src,
		Files:      append([]FileEntry(nil), meta.Files...),
		TotalBytes: meta.TotalBytes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
