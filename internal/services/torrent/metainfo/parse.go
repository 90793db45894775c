package metainfo

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/anacrolix/torrent/bencode"
	anametainfo "github.com/anacrolix/torrent/metainfo"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"torrentsession/internal/domain"
)

// Decode reads a whole metadata file from r and parses it.
func Decode(r io.Reader) (domain.TorrentMetadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.TorrentMetadata{}, fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	return Parse(data)
}

// Parse decodes bencoded metadata file bytes. The identifier is the SHA-1 of
// the raw info value exactly as it appears in data.
func Parse(data []byte) (domain.TorrentMetadata, error) {
	var mi anametainfo.MetaInfo
	if err := bencode.Unmarshal(data, &mi); err != nil {
		return domain.TorrentMetadata{}, fmt.Errorf("%w: %v", domain.ErrMalformedMetadata, err)
	}
	if len(mi.InfoBytes) == 0 {
		return domain.TorrentMetadata{}, fmt.Errorf("%w: missing info dictionary", domain.ErrMalformedMetadata)
	}
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return domain.TorrentMetadata{}, fmt.Errorf("%w: info: %v", domain.ErrMalformedMetadata, err)
	}
	dec := textDecoder(mi.Encoding)
	info.Name = decodeText(dec, info.Name)
	if strings.TrimSpace(info.Name) == "" {
		return domain.TorrentMetadata{}, fmt.Errorf("%w: info has no name", domain.ErrMalformedMetadata)
	}

	files, err := fileEntries(info, dec)
	if err != nil {
		return domain.TorrentMetadata{}, err
	}
	var total int64
	for _, f := range files {
		total += f.Length
	}

	return domain.TorrentMetadata{
		ID:         domain.TorrentID(mi.HashInfoBytes().HexString()),
		Name:       info.Name,
		TotalBytes: total,
		Announce:   announceEndpoints(mi),
		Files:      files,
	}, nil
}

func fileEntries(info anametainfo.Info, dec *encoding.Decoder) ([]domain.FileEntry, error) {
	if len(info.Files) == 0 {
		if info.Length < 0 {
			return nil, fmt.Errorf("%w: negative length %d", domain.ErrMalformedMetadata, info.Length)
		}
		return []domain.FileEntry{{Path: info.Name, Length: info.Length}}, nil
	}

	files := make([]domain.FileEntry, 0, len(info.Files))
	for i, fi := range info.Files {
		if fi.Length < 0 {
			return nil, fmt.Errorf("%w: file %d has negative length %d", domain.ErrMalformedMetadata, i, fi.Length)
		}
		if len(fi.Path) == 0 {
			return nil, fmt.Errorf("%w: file %d has empty path", domain.ErrMalformedMetadata, i)
		}
		segs := make([]string, len(fi.Path))
		for j, seg := range fi.Path {
			if seg == "" {
				return nil, fmt.Errorf("%w: file %d has empty path segment", domain.ErrMalformedMetadata, i)
			}
			segs[j] = decodeText(dec, seg)
		}
		files = append(files, domain.FileEntry{
			Path:   strings.Join(segs, "/"),
			Length: fi.Length,
		})
	}
	return files, nil
}

// announceEndpoints puts the primary announce first, then every tier of the
// announce-list in order. Duplicates are kept.
func announceEndpoints(mi anametainfo.MetaInfo) []string {
	out := make([]string, 0, 1+len(mi.AnnounceList))
	if mi.Announce != "" {
		out = append(out, mi.Announce)
	}
	for _, tier := range mi.AnnounceList {
		for _, url := range tier {
			if url != "" {
				out = append(out, url)
			}
		}
	}
	return out
}

// textDecoder resolves the optional "encoding" key that older clients wrote
// when names were not UTF-8. Unknown labels yield nil.
func textDecoder(label string) *encoding.Decoder {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil
	}
	return enc.NewDecoder()
}

// decodeText leaves valid UTF-8 alone, so files that declare a legacy
// encoding but store UTF-8 anyway keep their names.
func decodeText(dec *encoding.Decoder, s string) string {
	if dec == nil || utf8.ValidString(s) {
		return s
	}
	out, err := dec.String(s)
	if err != nil {
		return s
	}
	return out
}
