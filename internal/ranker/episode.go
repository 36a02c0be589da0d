package ranker

import (
	"regexp"
	"strconv"

	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/cehbz/torrentname"
)

type episodeMatch int

const (
	unmarked episodeMatch = iota
	exact
	seasonPack
	mismatch
)

var (
	sxxexx     = regexp.MustCompile(`(?i)\bs(\d{1,2})[ ._-]?e(\d{1,3})\b`)
	nxnn       = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	seasonOnly = regexp.MustCompile(`(?i)\b(?:s|season[ ._-]?)(\d{1,2})\b`)
)

// Markers returns the season and episode a torrent claims. Hints already set
// by the indexer win, then torrentname, then plain patterns. Zero means absent.
func Markers(t models.Torrent) (season, episode int) {
	if t.Season > 0 {
		return t.Season, t.Episode
	}
	if parsed := torrentname.Parse(t.Title); parsed != nil && parsed.Season > 0 {
		return parsed.Season, parsed.Episode
	}
	return ParseMarkers(t.Title)
}

// ParseMarkers reads S01E02, 1x02, or a bare season marker from a name.
func ParseMarkers(name string) (season, episode int) {
	for _, re := range []*regexp.Regexp{sxxexx, nxnn} {
		if m := re.FindStringSubmatch(name); m != nil {
			season, _ = strconv.Atoi(m[1])
			episode, _ = strconv.Atoi(m[2])
			return season, episode
		}
	}
	if m := seasonOnly.FindStringSubmatch(name); m != nil {
		season, _ = strconv.Atoi(m[1])
	}
	return season, 0
}

func matchEpisode(s, e, season, episode int) episodeMatch {
	switch {
	case s == 0:
		return unmarked
	case s != season:
		return mismatch
	case e == 0:
		return seasonPack
	case e == episode:
		return exact
	default:
		return mismatch
	}
}
