package domain

import "errors"

var (
	ErrInvalidIdentifier   = errors.New("invalid torrent identifier")
	ErrMalformedMetadata   = errors.New("malformed torrent metadata")
	ErrIO                  = errors.New("torrent source unreadable")
	ErrDuplicateIdentifier = errors.New("torrent already exists")
	ErrNotFound            = errors.New("not found")
	ErrCapacityExceeded    = errors.New("torrent capacity exceeded")
)
