package ranker

import (
	"testing"

	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeKeepsMostSeeded(t *testing.T) {
	in := []models.Torrent{
		{Title: "Heat 1995 1080p", InfoHash: "AAAA", Seeders: 3},
		{Title: "Heat.1995.1080p", InfoHash: "aaaa", Seeders: 9},
		{Title: "Heat 1995 720p", Size: 100, Seeders: 1},
		{Title: "heat-1995-720p", Size: 100, Seeders: 4},
		{Title: "heat-1995-720p", Size: 200, Seeders: 2},
	}

	out := Dedupe(in)
	require.Len(t, out, 3)
	assert.Equal(t, 9, out[0].Seeders)
	assert.Equal(t, 4, out[1].Seeders)
	assert.Equal(t, int64(200), out[2].Size)
}

func TestDedupeIsIdempotent(t *testing.T) {
	in := []models.Torrent{
		{Title: "A", InfoHash: "h1", Seeders: 1},
		{Title: "B", InfoHash: "h1", Seeders: 5},
		{Title: "C", Size: 10},
		{Title: "c", Size: 10, Seeders: 2},
		{Title: "D", InfoHash: "h2"},
	}

	once := Dedupe(in)
	assert.Equal(t, once, Dedupe(once))
}

func TestSortIsTotalOrder(t *testing.T) {
	ranked := []models.RankedTorrent{
		{Torrent: models.Torrent{Title: "big", Seeders: 10, Size: 900}, Score: 0.5},
		{Torrent: models.Torrent{Title: "top", Seeders: 1, Size: 100}, Score: 0.9},
		{Torrent: models.Torrent{Title: "small", Seeders: 10, Size: 100}, Score: 0.5},
		{Torrent: models.Torrent{Title: "seeded", Seeders: 50, Size: 5000}, Score: 0.5},
	}

	Sort(ranked)
	titles := make([]string, len(ranked))
	for i, r := range ranked {
		titles[i] = r.Title
	}
	assert.Equal(t, []string{"top", "seeded", "small", "big"}, titles)

	for i := range ranked {
		for j := range ranked {
			if i != j {
				assert.NotEqual(t, Less(ranked[i], ranked[j]), Less(ranked[j], ranked[i]))
			}
		}
	}
}

func TestRankPrefersSimilarTitles(t *testing.T) {
	torrents := []models.Torrent{
		{Title: "Completely.Different.Film.2020.1080p", InfoHash: "h2", Seeders: 20, Size: 2 * gib},
		{Title: "Heat.1995.1080p.BluRay", InfoHash: "h1", Seeders: 20, Size: 2 * gib},
	}

	ranked := Rank(torrents, models.SearchQuery{Name: "Heat", Type: "movie"}, DefaultOptions(), 0)
	require.Len(t, ranked, 2)
	assert.Equal(t, "h1", ranked[0].InfoHash)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestRankSizeRangeAndSeeders(t *testing.T) {
	opts := Options{Weights: Weights{Seeders: 1, Size: 1}, Movie: GBRange(1, 10), AmbiguityPenalty: 0.5}
	torrents := []models.Torrent{
		{Title: "x", InfoHash: "tiny", Size: 1000, Seeders: 5},
		{Title: "x", InfoHash: "sane", Size: 2 * gib, Seeders: 5},
		{Title: "x", InfoHash: "dead", Size: 2 * gib},
	}

	ranked := Rank(torrents, models.SearchQuery{Name: "x", Type: "movie"}, opts, 0)
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"sane", "dead", "tiny"}, []string{ranked[0].InfoHash, ranked[1].InfoHash, ranked[2].InfoHash})
	assert.InDelta(t, 1.0, ranked[1].Score, 1e-9)
}

func TestRankSeriesMatching(t *testing.T) {
	query := models.SearchQuery{Name: "Dark", Type: "series", Season: "2", Episode: "5"}
	opts := Options{Weights: Weights{Seeders: 1}, AmbiguityPenalty: 0.5}
	torrents := []models.Torrent{
		{Title: "exact", InfoHash: "e", Seeders: 100, Season: 2, Episode: 5},
		{Title: "pack", InfoHash: "p", Seeders: 100, Season: 2},
		{Title: "wrong episode", InfoHash: "w", Seeders: 100, Season: 2, Episode: 6},
		{Title: "wrong season", InfoHash: "s", Seeders: 100, Season: 1, Episode: 5},
		{Title: "Dark", InfoHash: "u", Seeders: 100},
	}

	ranked := Rank(torrents, query, opts, 0)
	require.Len(t, ranked, 3)
	assert.Equal(t, "e", ranked[0].InfoHash)
	assert.Equal(t, "p", ranked[1].InfoHash)
	assert.Equal(t, "u", ranked[2].InfoHash)

	require.NotNil(t, ranked[0].MatchedEpisode)
	assert.Equal(t, 5, *ranked[0].MatchedEpisode)
	require.NotNil(t, ranked[1].MatchedSeason)
	assert.Nil(t, ranked[1].MatchedEpisode)
	assert.InDelta(t, ranked[0].Score*0.5, ranked[2].Score, 1e-9)
}

func TestRankTruncates(t *testing.T) {
	var torrents []models.Torrent
	for i := 0; i < 8; i++ {
		torrents = append(torrents, models.Torrent{Title: "t", InfoHash: string(rune('a' + i)), Seeders: i})
	}

	ranked := Rank(torrents, models.SearchQuery{Name: "t", Type: "movie"}, DefaultOptions(), 3)
	require.Len(t, ranked, 3)
	assert.Equal(t, 7, ranked[0].Seeders)
}

func TestParseMarkers(t *testing.T) {
	cases := map[string][2]int{
		"Show.S02E05.720p":  {2, 5},
		"Show 3x07 HDTV":    {3, 7},
		"Show Season 4 WEB": {4, 0},
		"Show.S01.1080p":    {1, 0},
		"Movie 2019 1080p":  {0, 0},
	}
	for name, want := range cases {
		s, e := ParseMarkers(name)
		assert.Equal(t, want, [2]int{s, e}, name)
	}
}
