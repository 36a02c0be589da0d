package indexer

import (
	"encoding/base32"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/cehbz/torrentname"
)

// itemToTorrent maps one torznab item. Items with no way to reach the content
// (no infohash, magnet or download link) are rejected.
func itemToTorrent(item torznabItem, indexerID string) (models.Torrent, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return models.Torrent{}, false
	}

	attrs := make(map[string]string, len(item.Attrs))
	for _, a := range item.Attrs {
		key := strings.ToLower(strings.TrimSpace(a.Name))
		if _, seen := attrs[key]; key != "" && !seen {
			attrs[key] = strings.TrimSpace(a.Value)
		}
	}

	magnet := firstMagnet(attrs["magneturl"], item.GUID, item.Link, item.Enclosure.URL)
	hash := NormalizeInfoHash(attrs["infohash"])
	if hash == "" && magnet != "" {
		hash = InfoHashFromMagnet(magnet)
	}
	if magnet == "" && hash != "" {
		magnet = BuildMagnet(hash, title)
	}

	link := ""
	for _, candidate := range []string{item.Enclosure.URL, item.Link} {
		if strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") {
			link = candidate
			break
		}
	}
	if hash == "" && magnet == "" && link == "" {
		return models.Torrent{}, false
	}

	size := parseInt64(attrs["size"])
	if size <= 0 {
		size = item.Size
	}
	if size <= 0 {
		size = item.Enclosure.Length
	}

	source := strings.TrimSpace(item.Indexer.Name)
	if source == "" {
		source = attrs["indexer"]
	}
	if source == "" {
		source = indexerID
	}

	t := models.Torrent{
		Title:    title,
		InfoHash: hash,
		Magnet:   magnet,
		Link:     link,
		Size:     size,
		Seeders:  int(parseInt64(attrs["seeders"])),
		Indexer:  source,
	}
	if parsed := torrentname.Parse(title); parsed != nil {
		t.Season = parsed.Season
		t.Episode = parsed.Episode
	}
	if s := parseInt64(attrs["season"]); t.Season == 0 && s > 0 {
		t.Season = int(s)
	}
	if e := parseInt64(attrs["episode"]); t.Episode == 0 && e > 0 {
		t.Episode = int(e)
	}
	return t, true
}

// NormalizeInfoHash returns a lowercase 40-char hex hash, converting base32
// hashes and stripping the urn prefix. Anything else yields "".
func NormalizeInfoHash(raw string) string {
	h := strings.TrimSpace(raw)
	h = strings.TrimPrefix(strings.ToLower(h), "urn:btih:")
	switch len(h) {
	case 40:
		if _, err := hex.DecodeString(h); err == nil {
			return h
		}
	case 32:
		if b, err := base32.StdEncoding.DecodeString(strings.ToUpper(h)); err == nil {
			return hex.EncodeToString(b)
		}
	}
	return ""
}

// InfoHashFromMagnet extracts the btih hash from a magnet URI.
func InfoHashFromMagnet(magnet string) string {
	u, err := url.Parse(strings.TrimSpace(magnet))
	if err != nil || u.Scheme != "magnet" {
		return ""
	}
	for _, xt := range u.Query()["xt"] {
		if h := NormalizeInfoHash(xt); h != "" {
			return h
		}
	}
	return ""
}

// BuildMagnet creates a minimal magnet URI for a known hash.
func BuildMagnet(hash, name string) string {
	return "magnet:?xt=urn:btih:" + hash + "&dn=" + url.QueryEscape(name)
}

func firstMagnet(candidates ...string) string {
	for _, c := range candidates {
		v := strings.TrimSpace(c)
		if strings.HasPrefix(strings.ToLower(v), "magnet:?") {
			return v
		}
	}
	return ""
}

func parseInt64(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
