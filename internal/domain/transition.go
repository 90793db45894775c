package domain

import "errors"

var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions is the per-torrent state machine. Removal is allowed from
// every state and is not modelled here because the handle ceases to exist.
var validTransitions = map[TorrentStatus][]TorrentStatus{
	TorrentDownloading: {TorrentPaused, TorrentCompleted, TorrentError},
	TorrentPaused:      {TorrentDownloading, TorrentCompleted, TorrentError},
	TorrentCompleted:   {TorrentPaused, TorrentError},
	TorrentError:       {},
}

// CanTransition reports whether a transition from one status to another is valid.
// Staying in the same status is always allowed.
func CanTransition(from, to TorrentStatus) bool {
	if from == to {
		return true
	}
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// DeriveStatus computes a handle's status from its flags and progress.
// Error wins over everything, then the pause flag, then completion.
func DeriveStatus(paused bool, progress float64, errReason string) TorrentStatus {
	switch {
	case errReason != "":
		return TorrentError
	case paused:
		return TorrentPaused
	case progress >= 1:
		return TorrentCompleted
	default:
		return TorrentDownloading
	}
}
