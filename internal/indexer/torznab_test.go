package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hashA = "0123456789abcdef0123456789abcdef01234567"

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
<channel>
  <item>
    <title>Heat.1995.1080p.BluRay.x264</title>
    <guid>https://tracker.example/details/1</guid>
    <jackettindexer id="tracker1">Tracker One</jackettindexer>
    <link>https://jackett.local/dl/1.torrent</link>
    <size>1500000000</size>
    <enclosure url="https://jackett.local/dl/1.torrent" length="1500000000" type="application/x-bittorrent"/>
    <torznab:attr name="seeders" value="42"/>
    <torznab:attr name="infohash" value="0123456789ABCDEF0123456789ABCDEF01234567"/>
  </item>
  <item>
    <title>Heat.1995.720p.WEB</title>
    <guid>magnet:?xt=urn:btih:fedcba9876543210fedcba9876543210fedcba98&amp;dn=Heat</guid>
    <torznab:attr name="seeders" value="7"/>
    <torznab:attr name="size" value="900000000"/>
  </item>
  <item>
    <title>No way to fetch</title>
  </item>
</channel>
</rss>`

func TestClientSearchParsesItems(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2.0/indexers/tracker1/results/torznab/api", r.URL.Path)
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(rssFeed))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	torrents, err := c.Search(context.Background(), "tracker1", Request{
		Query:   models.SearchQuery{Name: "Heat", Type: "movie", Year: "1995"},
		IMDBID:  "tt0113277",
		Limit:   10,
		BaseURL: srv.URL + "/",
		APIKey:  "secret",
	})
	require.NoError(t, err)
	require.Len(t, torrents, 2)

	assert.Equal(t, hashA, torrents[0].InfoHash)
	assert.Equal(t, int64(1500000000), torrents[0].Size)
	assert.Equal(t, 42, torrents[0].Seeders)
	assert.Equal(t, "Tracker One", torrents[0].Indexer)
	assert.True(t, strings.HasPrefix(torrents[0].Magnet, "magnet:?xt=urn:btih:"+hashA))

	assert.Equal(t, "fedcba9876543210fedcba9876543210fedcba98", torrents[1].InfoHash)
	assert.Equal(t, int64(900000000), torrents[1].Size)
	assert.Equal(t, "tracker1", torrents[1].Indexer)

	for _, want := range []string{"t=movie", "apikey=secret", "imdbid=tt0113277", "limit=10", "extended=1", "q=Heat"} {
		assert.Contains(t, gotQuery, want)
	}
}

func TestClientSearchSeriesParams(t *testing.T) {
	params := searchParams(Request{Query: models.SearchQuery{Name: "Dark", Type: "series", Season: "2", Episode: "5"}})

	assert.Equal(t, "tvsearch", params.Get("t"))
	assert.Equal(t, "2", params.Get("season"))
	assert.Equal(t, "5", params.Get("ep"))
	assert.Empty(t, params.Get("imdbid"))
}

func TestClientSearchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "status":
			http.Error(w, "nope", http.StatusBadGateway)
		case "apierror":
			_, _ = w.Write([]byte(`<error code="100" description="Invalid API Key"/>`))
		default:
			_, _ = w.Write([]byte("<rss><channel><item>"))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	for _, q := range []string{"status", "apierror", "garbage"} {
		_, err := c.Search(context.Background(), "all", Request{Query: models.SearchQuery{Name: q}, BaseURL: srv.URL})
		assert.Error(t, err, q)
	}
}

func TestClientIndexers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "indexers", r.URL.Query().Get("t"))
		_, _ = w.Write([]byte(`<indexers>
  <indexer id="one" configured="true"><title>One</title></indexer>
  <indexer id="two" configured="false"><title>Two</title></indexer>
  <indexer id="three" configured="true"><title>Three</title></indexer>
</indexers>`))
	}))
	defer srv.Close()

	ids, err := NewClient(srv.Client()).Indexers(context.Background(), srv.URL, "key")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three"}, ids)
}

func TestNormalizeInfoHash(t *testing.T) {
	assert.Equal(t, hashA, NormalizeInfoHash("urn:btih:"+strings.ToUpper(hashA)))
	// base32 form of the same 20 bytes
	assert.Equal(t, hashA, NormalizeInfoHash("AERUKZ4JVPG66AJDIVTYTK6N54ASGRLH"))
	assert.Empty(t, NormalizeInfoHash("xyz"))
	assert.Empty(t, NormalizeInfoHash(strings.Repeat("z", 40)))
}

func TestInfoHashFromMagnet(t *testing.T) {
	assert.Equal(t, hashA, InfoHashFromMagnet(BuildMagnet(hashA, "Heat 1995")))
	assert.Empty(t, InfoHashFromMagnet("https://example.com"))
}

func TestItemToTorrentUsesTitleHints(t *testing.T) {
	item := torznabItem{Title: "Dark.S02E05.1080p.WEB.x264", Link: "https://jackett/dl/5.torrent"}

	tor, ok := itemToTorrent(item, "idx")
	require.True(t, ok)
	assert.Equal(t, 2, tor.Season)
	assert.Equal(t, 5, tor.Episode)
	assert.Equal(t, "https://jackett/dl/5.torrent", tor.Link)
	assert.Empty(t, tor.InfoHash)
}
