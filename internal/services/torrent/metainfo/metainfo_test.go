package metainfo

import (
	"bytes"
	"crypto/sha1"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"testing/iotest"

	"torrentsession/internal/domain"
)

const sampleHash = "0123456789abcdef0123456789abcdef01234567"

func bstr(s string) string {
	return fmt.Sprintf("%d:%s", len(s), s)
}

func singleFileInfo(name string, length int64) string {
	return fmt.Sprintf("d6:lengthi%de4:name%s12:piece lengthi16384e6:pieces0:e", length, bstr(name))
}

func multiFileInfo() string {
	return "d5:filesl" +
		"d6:lengthi3e4:pathl" + bstr("dir") + bstr("b.txt") + "ee" +
		"d6:lengthi7e4:pathl" + bstr("c.txt") + "ee" +
		"e4:name" + bstr("pack") + "12:piece lengthi16384e6:pieces0:e"
}

func torrentFile(announce string, tiers [][]string, info string) string {
	var b strings.Builder
	b.WriteString("d")
	if announce != "" {
		b.WriteString("8:announce" + bstr(announce))
	}
	if len(tiers) > 0 {
		b.WriteString("13:announce-listl")
		for _, tier := range tiers {
			b.WriteString("l")
			for _, u := range tier {
				b.WriteString(bstr(u))
			}
			b.WriteString("e")
		}
		b.WriteString("e")
	}
	b.WriteString("4:info" + info + "e")
	return b.String()
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestParseSingleFile(t *testing.T) {
	info := singleFileInfo("a.txt", 100)
	data := []byte(torrentFile("udp://tracker.example:80", nil, info))

	meta, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(meta.ID) != sha1Hex(info) {
		t.Fatalf("id = %s, want %s", meta.ID, sha1Hex(info))
	}
	if meta.Name != "a.txt" || meta.TotalBytes != 100 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if len(meta.Files) != 1 || meta.Files[0] != (domain.FileEntry{Path: "a.txt", Length: 100}) {
		t.Fatalf("files = %+v", meta.Files)
	}
	if len(meta.Announce) != 1 || meta.Announce[0] != "udp://tracker.example:80" {
		t.Fatalf("announce = %v", meta.Announce)
	}
	if meta.Pending {
		t.Fatalf("file metadata must not be pending")
	}

	again, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse again: %v", err)
	}
	if again.ID != meta.ID {
		t.Fatalf("identifier not deterministic: %s vs %s", again.ID, meta.ID)
	}
}

func TestParseMultiFilePreservesOrder(t *testing.T) {
	info := multiFileInfo()
	meta, err := Parse([]byte(torrentFile("", nil, info)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(meta.ID) != sha1Hex(info) {
		t.Fatalf("id = %s, want %s", meta.ID, sha1Hex(info))
	}
	want := []domain.FileEntry{{Path: "dir/b.txt", Length: 3}, {Path: "c.txt", Length: 7}}
	if len(meta.Files) != len(want) {
		t.Fatalf("files = %+v", meta.Files)
	}
	for i := range want {
		if meta.Files[i] != want[i] {
			t.Fatalf("files[%d] = %+v, want %+v", i, meta.Files[i], want[i])
		}
	}
	if meta.TotalBytes != 10 {
		t.Fatalf("total = %d, want 10", meta.TotalBytes)
	}
	if !meta.Consistent() {
		t.Fatalf("metadata inconsistent: %+v", meta)
	}
	if len(meta.Announce) != 0 {
		t.Fatalf("announce = %v, want empty", meta.Announce)
	}
}

func TestParseFlattensAnnounceTiers(t *testing.T) {
	data := torrentFile("udp://primary", [][]string{
		{"udp://t1a", "udp://t1b"},
		{"udp://t2a"},
	}, singleFileInfo("x", 1))

	meta, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"udp://primary", "udp://t1a", "udp://t1b", "udp://t2a"}
	if strings.Join(meta.Announce, ",") != strings.Join(want, ",") {
		t.Fatalf("announce = %v, want %v", meta.Announce, want)
	}
}

func TestParseDecodesDeclaredEncoding(t *testing.T) {
	cp1251Name := "\xcf\xf0\xe8"
	info := "d5:filesl" +
		"d6:lengthi1e4:pathl" + bstr(cp1251Name) + "ee" +
		"e4:name" + bstr(cp1251Name) + "12:piece lengthi16384e6:pieces0:e"
	data := "d8:encoding" + bstr("windows-1251") + "4:info" + info + "e"

	meta, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if meta.Name != "При" {
		t.Fatalf("name = %q", meta.Name)
	}
	if meta.Files[0].Path != "При" {
		t.Fatalf("path = %q", meta.Files[0].Path)
	}
	if string(meta.ID) != sha1Hex(info) {
		t.Fatalf("id must hash the raw bytes, got %s", meta.ID)
	}
}

func TestDecodeTextKeepsUTF8(t *testing.T) {
	dec := textDecoder("windows-1251")
	if dec == nil {
		t.Fatalf("windows-1251 decoder missing")
	}
	if got := decodeText(dec, "plain.txt"); got != "plain.txt" {
		t.Fatalf("decodeText = %q", got)
	}
	if textDecoder("no-such-charset") != nil || textDecoder("") != nil {
		t.Fatalf("unknown labels must yield nil")
	}
	if got := decodeText(nil, "\xff"); got != "\xff" {
		t.Fatalf("nil decoder changed input")
	}
}

func TestParseMalformed(t *testing.T) {
	valid := torrentFile("", nil, singleFileInfo("a.txt", 1))
	cases := map[string]string{
		"empty":           "",
		"garbage":         "not bencode",
		"truncated":       valid[:len(valid)-3],
		"trailing bytes":  valid + "x",
		"missing info":    "d8:announce" + bstr("udp://t") + "e",
		"info not dict":   "d4:infoi5ee",
		"negative length": torrentFile("", nil, singleFileInfo("a.txt", -5)),
		"empty path":      torrentFile("", nil, "d5:filesld6:lengthi1e4:pathlee" + "e4:name1:xe"),
		"empty segment":   torrentFile("", nil, "d5:filesld6:lengthi1e4:pathl0:ee" + "e4:name1:xe"),
		"missing name":    torrentFile("", nil, "d6:lengthi1ee"),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			if !errors.Is(err, domain.ErrMalformedMetadata) {
				t.Fatalf("err = %v, want ErrMalformedMetadata", err)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	info := singleFileInfo("a.txt", 100)
	meta, err := Decode(bytes.NewReader([]byte(torrentFile("", nil, info))))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(meta.ID) != sha1Hex(info) {
		t.Fatalf("id = %s", meta.ID)
	}

	_, err = Decode(iotest.ErrReader(errors.New("disk gone")))
	if !errors.Is(err, domain.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
}

func TestParseMagnet(t *testing.T) {
	uri := "magnet:?xt=urn:btih:" + sampleHash + "&dn=My+Show&tr=udp%3A%2F%2Ft1&tr=udp%3A%2F%2Ft2"
	meta, err := ParseMagnet(uri)
	if err != nil {
		t.Fatalf("ParseMagnet: %v", err)
	}
	if meta.ID != sampleHash {
		t.Fatalf("id = %s, want %s", meta.ID, sampleHash)
	}
	if meta.Name != "My Show" {
		t.Fatalf("name = %q", meta.Name)
	}
	if !meta.Pending || meta.TotalBytes != 0 || len(meta.Files) != 0 {
		t.Fatalf("expected pending placeholder metadata, got %+v", meta)
	}
	if strings.Join(meta.Announce, ",") != "udp://t1,udp://t2" {
		t.Fatalf("announce = %v", meta.Announce)
	}
}

func TestParseMagnetCanonicalisesHash(t *testing.T) {
	meta, err := ParseMagnet("magnet:?xt=urn:btih:" + strings.ToUpper(sampleHash))
	if err != nil {
		t.Fatalf("ParseMagnet upper: %v", err)
	}
	if meta.ID != sampleHash {
		t.Fatalf("id = %s, want %s", meta.ID, sampleHash)
	}
	if meta.Name != sampleHash {
		t.Fatalf("name = %q, want id placeholder", meta.Name)
	}

	raw, _ := hex.DecodeString(sampleHash)
	b32 := base32.StdEncoding.EncodeToString(raw)
	meta, err = ParseMagnet("magnet:?xt=urn:btih:" + b32)
	if err != nil {
		t.Fatalf("ParseMagnet base32: %v", err)
	}
	if meta.ID != sampleHash {
		t.Fatalf("base32 id = %s, want %s", meta.ID, sampleHash)
	}
}

func TestParseMagnetInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"wrong scheme": "http://example.com/?xt=urn:btih:" + sampleHash,
		"missing xt":   "magnet:?dn=name",
		"other urn":    "magnet:?xt=urn:sha1:" + sampleHash,
		"empty hash":   "magnet:?xt=urn:btih:",
		"short hash":   "magnet:?xt=urn:btih:abc",
		"non hex":      "magnet:?xt=urn:btih:" + strings.Repeat("z", 40),
		"bad escape":   "magnet:?xt=%zz",
		"not a uri":    "%zz",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMagnet(input)
			if !errors.Is(err, domain.ErrInvalidIdentifier) {
				t.Fatalf("err = %v, want ErrInvalidIdentifier", err)
			}
		})
	}
}
