// Package ranker deduplicates, filters and orders indexer results.
package ranker

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/cehbz/torrentname"
)

const (
	gib = 1 << 30

	// seeders beyond this count add nothing to the score
	seedersCeiling = 1000

	packConfidence = 0.85
)

// Weights balances the score components. They are not required to sum to 1.
type Weights struct {
	Seeders    float64
	Similarity float64
	Size       float64
}

// SizeRange is an inclusive byte range considered sane for one file.
type SizeRange struct {
	Min int64
	Max int64
}

func (r SizeRange) contains(size int64) bool {
	return size > 0 && size >= r.Min && (r.Max <= 0 || size <= r.Max)
}

// Options tunes ranking. AmbiguityPenalty multiplies the score of series
// torrents that carry no season/episode marker at all.
type Options struct {
	Weights          Weights
	Movie            SizeRange
	Episode          SizeRange
	AmbiguityPenalty float64
}

func DefaultOptions() Options {
	return Options{
		Weights:          Weights{Seeders: 0.4, Similarity: 0.4, Size: 0.2},
		Movie:            GBRange(0.5, 40),
		Episode:          GBRange(0.1, 10),
		AmbiguityPenalty: 0.5,
	}
}

// GBRange builds a SizeRange from gigabyte bounds.
func GBRange(minGB, maxGB float64) SizeRange {
	return SizeRange{Min: int64(minGB * gib), Max: int64(maxGB * gib)}
}

// Rank dedupes torrents, drops series results for the wrong episode, scores
// the rest against query and returns at most limit of them, best first.
// A limit <= 0 keeps everything.
func Rank(torrents []models.Torrent, query models.SearchQuery, opts Options, limit int) []models.RankedTorrent {
	unique := Dedupe(torrents)

	season, _ := strconv.Atoi(query.Season)
	episode, _ := strconv.Atoi(query.Episode)
	name := normalizeTitle(query.Name)
	lev := metrics.NewLevenshtein()

	ranked := make([]models.RankedTorrent, 0, len(unique))
	for _, t := range unique {
		rt := models.RankedTorrent{Torrent: t}
		s, e := Markers(t)
		confidence := 1.0
		sizeRange := opts.Movie

		if query.IsSeries() {
			m := matchEpisode(s, e, season, episode)
			switch m {
			case mismatch:
				continue
			case exact:
				rt.MatchedSeason, rt.MatchedEpisode = intPtr(s), intPtr(e)
				sizeRange = opts.Episode
			case seasonPack:
				rt.MatchedSeason = intPtr(s)
				confidence = packConfidence
				// packs hold many episodes, only the lower bound is meaningful
				sizeRange = SizeRange{Min: opts.Episode.Min}
			case unmarked:
				confidence = opts.AmbiguityPenalty
				sizeRange = opts.Episode
			}
		}

		score := opts.Weights.Seeders*seedersScore(t.Seeders) +
			opts.Weights.Similarity*similarity(name, t.Title, lev)
		if sizeRange.contains(t.Size) {
			score += opts.Weights.Size
		}
		rt.Score = score * confidence
		ranked = append(ranked, rt)
	}

	Sort(ranked)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Sort orders by score desc, seeders desc, size asc, then title and hash so
// the result never depends on input order.
func Sort(ranked []models.RankedTorrent) {
	sort.SliceStable(ranked, func(i, j int) bool {
		return Less(ranked[i], ranked[j])
	})
}

// Less reports whether a ranks ahead of b.
func Less(a, b models.RankedTorrent) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Seeders != b.Seeders {
		return a.Seeders > b.Seeders
	}
	if a.Size != b.Size {
		return a.Size < b.Size
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.InfoHash < b.InfoHash
}

// Dedupe keeps one torrent per identity, the copy with the most seeders.
// First-seen order is preserved so running it twice changes nothing.
func Dedupe(torrents []models.Torrent) []models.Torrent {
	index := make(map[string]int, len(torrents))
	out := make([]models.Torrent, 0, len(torrents))
	for _, t := range torrents {
		key := Key(t)
		if i, ok := index[key]; ok {
			if t.Seeders > out[i].Seeders {
				out[i] = t
			}
			continue
		}
		index[key] = len(out)
		out = append(out, t)
	}
	return out
}

// Key is the dedupe identity: the infohash, or normalized title plus size.
func Key(t models.Torrent) string {
	if h := strings.ToLower(strings.TrimSpace(t.InfoHash)); h != "" {
		return "h:" + h
	}
	return "t:" + normalizeTitle(t.Title) + ":" + strconv.FormatInt(t.Size, 10)
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeTitle(s string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(s), " "), " ")
}

func seedersScore(seeders int) float64 {
	if seeders <= 0 {
		return 0
	}
	return math.Min(1, math.Log1p(float64(seeders))/math.Log1p(seedersCeiling))
}

// similarity compares the media name with the title part torrentname
// recognises, falling back to the raw release name.
func similarity(name, title string, metric strutil.StringMetric) float64 {
	if name == "" {
		return 0
	}
	candidate := title
	if parsed := torrentname.Parse(title); parsed != nil && parsed.Title != "" {
		candidate = parsed.Title
	}
	return strutil.Similarity(name, normalizeTitle(candidate), metric)
}

func intPtr(v int) *int { return &v }
