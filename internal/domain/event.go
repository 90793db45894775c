package domain

import "time"

type EventKind string

const (
	EventAdded     EventKind = "added"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventError     EventKind = "error"
	EventPaused    EventKind = "paused"
	EventResumed   EventKind = "resumed"
	EventRemoved   EventKind = "removed"
)

// Event is an immutable notification about a torrent. Only the payload field
// matching Kind is set: Metadata for Added, Stats for Progress, Reason for Error.
type Event struct {
	Seq      uint64           `json:"seq"`
	Kind     EventKind        `json:"kind"`
	ID       TorrentID        `json:"id"`
	Metadata *TorrentMetadata `json:"metadata,omitempty"`
	Stats    *TorrentStats    `json:"stats,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	At       time.Time        `json:"at"`
}

func AddedEvent(meta TorrentMetadata, at time.Time) Event {
	m := meta.Clone()
	return Event{Kind: EventAdded, ID: meta.ID, Metadata: &m, At: at}
}

func ProgressEvent(id TorrentID, stats TorrentStats, at time.Time) Event {
	s := stats
	return Event{Kind: EventProgress, ID: id, Stats: &s, At: at}
}

func CompletedEvent(id TorrentID, at time.Time) Event {
	return Event{Kind: EventCompleted, ID: id, At: at}
}

func ErrorEvent(id TorrentID, reason string, at time.Time) Event {
	return Event{Kind: EventError, ID: id, Reason: reason, At: at}
}

func PausedEvent(id TorrentID, at time.Time) Event {
	return Event{Kind: EventPaused, ID: id, At: at}
}

func ResumedEvent(id TorrentID, at time.Time) Event {
	return Event{Kind: EventResumed, ID: id, At: at}
}

func RemovedEvent(id TorrentID, at time.Time) Event {
	return Event{Kind: EventRemoved, ID: id, At: at}
}
