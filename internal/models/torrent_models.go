// Package models defines the request-scoped values that flow through the stream pipeline.
package models

// SearchQuery is the normalized search built from media metadata.
// Season and Episode are set only for series.
type SearchQuery struct {
	Name    string
	Type    string
	Year    string
	Season  string
	Episode string
}

// IsSeries reports whether the query targets a single series episode.
func (q SearchQuery) IsSeries() bool {
	return q.Season != "" && q.Episode != ""
}

// Torrent is one normalized indexer hit.
type Torrent struct {
	Title    string
	InfoHash string
	Magnet   string
	Link     string // .torrent download URL when no magnet is published
	Size     int64  // bytes
	Seeders  int
	Indexer  string
	Season   int // hints parsed from the title, 0 when absent
	Episode  int
}

// RankedTorrent is a Torrent with its relevance score.
type RankedTorrent struct {
	Torrent
	Score          float64
	MatchedSeason  *int
	MatchedEpisode *int
}

// StreamLink is a playable direct link resolved by a debrid provider.
type StreamLink struct {
	URL      string
	Name     string
	Size     int64
	Source   *RankedTorrent
	Provider string
}
