// Package metainfo resolves torrent identity and content description from
// magnet URIs and bencoded metadata files.
package metainfo

import (
	"fmt"
	"net/url"
	"strings"

	anametainfo "github.com/anacrolix/torrent/metainfo"

	"torrentsession/internal/domain"
)

const btihPrefix = "urn:btih:"

// ParseMagnet resolves a magnet URI into placeholder metadata. The info
// dictionary is unknown until fetched out-of-band, so the result is Pending
// with no files and zero size. The btih value may be 40 hex or 32 base32
// characters in any case; the identifier is always its lowercase hex form.
func ParseMagnet(uri string) (domain.TorrentMetadata, error) {
	raw := strings.TrimSpace(uri)
	u, err := url.Parse(raw)
	if err != nil {
		return domain.TorrentMetadata{}, fmt.Errorf("%w: %v", domain.ErrInvalidIdentifier, err)
	}
	if !strings.EqualFold(u.Scheme, "magnet") {
		return domain.TorrentMetadata{}, fmt.Errorf("%w: unexpected scheme %q", domain.ErrInvalidIdentifier, u.Scheme)
	}
	if !hasBTIH(u.Query()["xt"]) {
		return domain.TorrentMetadata{}, fmt.Errorf("%w: missing xt=%s parameter", domain.ErrInvalidIdentifier, btihPrefix)
	}

	m, err := anametainfo.ParseMagnetUri(raw)
	if err != nil {
		return domain.TorrentMetadata{}, fmt.Errorf("%w: %v", domain.ErrInvalidIdentifier, err)
	}

	id := domain.TorrentID(m.InfoHash.HexString())
	name := strings.TrimSpace(m.DisplayName)
	if name == "" {
		name = string(id)
	}
	announce := make([]string, 0, len(m.Trackers))
	for _, tr := range m.Trackers {
		if tr = strings.TrimSpace(tr); tr != "" {
			announce = append(announce, tr)
		}
	}

	return domain.TorrentMetadata{
		ID:       id,
		Name:     name,
		Announce: announce,
		Files:    []domain.FileEntry{},
		Pending:  true,
	}, nil
}

func hasBTIH(values []string) bool {
	for _, v := range values {
		if len(v) > len(btihPrefix) && strings.EqualFold(v[:len(btihPrefix)], btihPrefix) {
			return true
		}
	}
	return false
}
