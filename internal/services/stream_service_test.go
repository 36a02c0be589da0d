package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/gostremiodebrid/internal/debrid"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/indexer"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/internal/ranker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetadata struct {
	info *models.MediaInfo
	err  error

	// hang blocks until the lookup context is done
	hang bool
}

func (f *fakeMetadata) GetMediaInfo(ctx context.Context, imdbID, mediaType string) (*models.MediaInfo, error) {
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.info, f.err
}

type fakeSearcher struct {
	mu       sync.Mutex
	torrents []models.Torrent
	calls    int
	last     indexer.Request
}

func (f *fakeSearcher) Search(ctx context.Context, req indexer.Request) []models.Torrent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	return f.torrents
}

// fakeProvider resolves every torrent to a link of linkSize bytes.
type fakeProvider struct {
	linkSize int64
	err      error

	mu       sync.Mutex
	filter   *debrid.EpisodeFilter
	received []models.RankedTorrent
	deleted  []string
	failFor  string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Resolve(ctx context.Context, torrents []models.RankedTorrent, credential string, filter *debrid.EpisodeFilter, maxResults int) ([]models.StreamLink, error) {
	f.mu.Lock()
	f.filter = filter
	f.received = torrents
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	links := []models.StreamLink{}
	for i := range torrents {
		if len(links) >= maxResults {
			break
		}
		links = append(links, models.StreamLink{
			URL:      "https://cdn.example/" + torrents[i].InfoHash,
			Name:     torrents[i].Title + ".mkv",
			Size:     f.linkSize,
			Source:   &torrents[i],
			Provider: f.Name(),
		})
	}
	return links, nil
}

func (f *fakeProvider) DeleteMagnet(ctx context.Context, credential, remoteID string) error {
	if remoteID == f.failFor {
		return errors.New("remote delete failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, remoteID)
	return nil
}

func registryWith(p debrid.Service) *debrid.Registry {
	r := debrid.NewRegistry(debrid.Options{})
	r.Register(p.Name(), func(debrid.Options) debrid.Service { return p })
	return r
}

func movieRequest() Request {
	return Request{
		MediaType:     "movie",
		ID:            "tt1234567",
		StreamService: "fake",
		IndexerURL:    "http://jackett:9117",
		IndexerAPIKey: "jackettkey",
		DebridAPIKey:  "debridkey",
		MaxResults:    3,
	}
}

func TestResolveStreamsMetadataMiss(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := NewStreamService(&fakeMetadata{}, searcher, registryWith(&fakeProvider{}), ranker.DefaultOptions(), 0, nil)

	req := movieRequest()
	req.ID = "tt9999999"
	resp, err := svc.ResolveStreams(context.Background(), req)
	require.NoError(t, err)
	assert.NotNil(t, resp.Streams)
	assert.Empty(t, resp.Streams)
	assert.Equal(t, "Error getting media info", resp.Error)
	assert.Zero(t, searcher.calls)
}

func TestResolveStreamsMetadataErrorIsAMiss(t *testing.T) {
	svc := NewStreamService(&fakeMetadata{err: errors.New("connection refused")}, &fakeSearcher{}, registryWith(&fakeProvider{}), ranker.DefaultOptions(), 0, nil)

	resp, err := svc.ResolveStreams(context.Background(), movieRequest())
	require.NoError(t, err)
	assert.Equal(t, "Error getting media info", resp.Error)
}

func TestResolveStreamsMetadataTimeout(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := NewStreamService(&fakeMetadata{hang: true}, searcher, registryWith(&fakeProvider{}), ranker.DefaultOptions(), 0, nil)
	svc.SetMetadataTimeout(20 * time.Millisecond)

	start := time.Now()
	resp, err := svc.ResolveStreams(context.Background(), movieRequest())
	require.NoError(t, err)
	assert.Equal(t, "Error getting media info", resp.Error)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Zero(t, searcher.calls)
}

func TestResolveStreamsMovie(t *testing.T) {
	searcher := &fakeSearcher{torrents: []models.Torrent{
		{Title: "Heat.1995.1080p.BluRay", InfoHash: "aaaa", Size: 1_500_000_000, Seeders: 50},
		{Title: "Heat.1995.720p.WEB", InfoHash: "bbbb", Size: 1_500_000_000, Seeders: 10},
	}}
	provider := &fakeProvider{linkSize: 1_500_000_000}
	meta := &fakeMetadata{info: &models.MediaInfo{Name: "Heat", ReleaseInfo: "1995"}}
	svc := NewStreamService(meta, searcher, registryWith(provider), ranker.DefaultOptions(), 0, nil)

	resp, err := svc.ResolveStreams(context.Background(), movieRequest())
	require.NoError(t, err)
	assert.Empty(t, resp.Error)
	require.Len(t, resp.Streams, 2)

	for _, s := range resp.Streams {
		assert.True(t, strings.HasSuffix(s.Name, "\n💾1.40 GB"), s.Name)
		assert.Equal(t, "Heat", s.Title)
		assert.NotEmpty(t, s.URL)
	}
	assert.Equal(t, "https://cdn.example/aaaa", resp.Streams[0].URL)

	assert.Equal(t, "tt1234567", searcher.last.IMDBID)
	assert.Equal(t, 10, searcher.last.Limit)
	assert.Equal(t, "Heat", searcher.last.Query.Name)
	assert.Equal(t, "1995", searcher.last.Query.Year)
	assert.Equal(t, "http://jackett:9117", searcher.last.BaseURL)
	assert.Nil(t, provider.filter)
}

func TestResolveStreamsSeriesPassesEpisodeFilter(t *testing.T) {
	searcher := &fakeSearcher{torrents: []models.Torrent{
		{Title: "Dark.S02E05.1080p", InfoHash: "e5", Size: 2 << 30, Seeders: 20},
		{Title: "Dark.S02E06.1080p", InfoHash: "e6", Size: 2 << 30, Seeders: 90},
		{Title: "Dark.S02.COMPLETE.1080p", InfoHash: "pack", Size: 20 << 30, Seeders: 40},
	}}
	provider := &fakeProvider{linkSize: 2 << 30}
	meta := &fakeMetadata{info: &models.MediaInfo{Name: "Dark", ReleaseInfo: "2017–2020"}}
	svc := NewStreamService(meta, searcher, registryWith(provider), ranker.DefaultOptions(), 0, nil)

	req := movieRequest()
	req.MediaType = "series"
	req.ID = "tt5753856:2:5"
	resp, err := svc.ResolveStreams(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, provider.filter)
	assert.Equal(t, debrid.EpisodeFilter{Season: 2, Episode: 5}, *provider.filter)
	assert.Equal(t, "2", searcher.last.Query.Season)
	assert.Equal(t, "5", searcher.last.Query.Episode)

	// the S02E06 release is dropped before resolution
	hashes := make([]string, 0, len(provider.received))
	for _, r := range provider.received {
		hashes = append(hashes, r.InfoHash)
	}
	assert.ElementsMatch(t, []string{"e5", "pack"}, hashes)

	require.Len(t, resp.Streams, 2)
	assert.Equal(t, "Dark", resp.Streams[0].Title)
}

func TestResolveStreamsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"unknown type", func(r *Request) { r.MediaType = "channel" }},
		{"malformed id", func(r *Request) { r.ID = "1234567" }},
		{"series without episode", func(r *Request) { r.MediaType = "series" }},
		{"series with text episode", func(r *Request) { r.MediaType = "series"; r.ID = "tt1:2:x" }},
		{"movie with episode", func(r *Request) { r.ID = "tt1234567:1:2" }},
		{"zero results", func(r *Request) { r.MaxResults = 0 }},
		{"missing indexer", func(r *Request) { r.IndexerURL = "" }},
		{"unknown provider", func(r *Request) { r.StreamService = "premiumize" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{}
			svc := NewStreamService(&fakeMetadata{info: &models.MediaInfo{Name: "x"}}, searcher, registryWith(&fakeProvider{}), ranker.DefaultOptions(), 0, nil)

			req := movieRequest()
			tt.mutate(&req)
			_, err := svc.ResolveStreams(context.Background(), req)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err), err.Error())
			assert.Zero(t, searcher.calls)
		})
	}
}

func TestResolveStreamsAuthFailure(t *testing.T) {
	searcher := &fakeSearcher{torrents: []models.Torrent{{Title: "Heat.1995", InfoHash: "aaaa", Size: 1 << 30}}}
	provider := &fakeProvider{err: apperrors.NewAuthError("fake", errors.New("bad_token"))}
	svc := NewStreamService(&fakeMetadata{info: &models.MediaInfo{Name: "Heat"}}, searcher, registryWith(provider), ranker.DefaultOptions(), 0, nil)

	_, err := svc.ResolveStreams(context.Background(), movieRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsAuth(err))
}

func TestResolveStreamsProviderErrorGivesEmptyResult(t *testing.T) {
	searcher := &fakeSearcher{torrents: []models.Torrent{{Title: "Heat.1995", InfoHash: "aaaa", Size: 1 << 30}}}
	provider := &fakeProvider{err: errors.New("upstream exploded")}
	svc := NewStreamService(&fakeMetadata{info: &models.MediaInfo{Name: "Heat"}}, searcher, registryWith(provider), ranker.DefaultOptions(), 0, nil)

	resp, err := svc.ResolveStreams(context.Background(), movieRequest())
	require.NoError(t, err)
	assert.NotNil(t, resp.Streams)
	assert.Empty(t, resp.Streams)
	assert.Empty(t, resp.Error)
}

func TestResolveStreamsNoTorrents(t *testing.T) {
	svc := NewStreamService(&fakeMetadata{info: &models.MediaInfo{Name: "Heat"}}, &fakeSearcher{}, registryWith(&fakeProvider{}), ranker.DefaultOptions(), 0, nil)

	resp, err := svc.ResolveStreams(context.Background(), movieRequest())
	require.NoError(t, err)
	assert.NotNil(t, resp.Streams)
	assert.Empty(t, resp.Streams)
}
