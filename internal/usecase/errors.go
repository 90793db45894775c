package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrEngine        = errors.New("engine error")
	ErrRepository    = errors.New("repository error")
	ErrInvalidSource = errors.New("invalid torrent source")
)

// wrapEngine keeps the engine's own sentinel reachable through errors.Is so
// callers can still tell a duplicate from a missing torrent.
func wrapEngine(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrEngine, err)
}

func wrapRepo(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrRepository, err)
}
