package debrid

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(concurrency int) engine {
	return engine{
		provider:    "test",
		concurrency: concurrency,
		attempts:    3,
		delay:       time.Millisecond,
		maxDelay:    5 * time.Millisecond,
		logger:      logger.Nop(),
	}
}

func candidates(n int) []models.RankedTorrent {
	out := make([]models.RankedTorrent, n)
	for i := range out {
		out[i] = models.RankedTorrent{Torrent: models.Torrent{Title: "t" + strconv.Itoa(i), InfoHash: strconv.Itoa(i)}}
	}
	return out
}

func TestResolveAllCancelsAfterEnoughLinks(t *testing.T) {
	var started, completed, cancelled atomic.Int32

	attempt := func(ctx context.Context, tor models.RankedTorrent) (*models.StreamLink, error) {
		started.Add(1)
		idx, _ := strconv.Atoi(tor.InfoHash)
		if idx < 3 {
			completed.Add(1)
			return &models.StreamLink{URL: "https://cdn/" + tor.InfoHash, Name: tor.Title}, nil
		}
		<-ctx.Done()
		cancelled.Add(1)
		return nil, ctx.Err()
	}

	links, err := testEngine(4).resolveAll(context.Background(), candidates(10), 3, attempt)
	require.NoError(t, err)
	require.Len(t, links, 3)
	for i, l := range links {
		assert.Equal(t, "t"+strconv.Itoa(i), l.Name)
	}

	assert.Equal(t, int32(3), completed.Load())
	assert.Equal(t, started.Load(), completed.Load()+cancelled.Load())
	assert.Less(t, started.Load(), int32(10))
}

func TestResolveAllKeepsRankOrder(t *testing.T) {
	attempt := func(ctx context.Context, tor models.RankedTorrent) (*models.StreamLink, error) {
		idx, _ := strconv.Atoi(tor.InfoHash)
		// later ranks finish first
		time.Sleep(time.Duration(5-idx) * 5 * time.Millisecond)
		if idx%2 == 1 {
			return nil, nil
		}
		return &models.StreamLink{URL: "u" + tor.InfoHash, Name: tor.Title}, nil
	}

	links, err := testEngine(5).resolveAll(context.Background(), candidates(5), 10, attempt)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, []string{"u0", "u2", "u4"}, []string{links[0].URL, links[1].URL, links[2].URL})
}

func TestResolveAllAuthFailureAborts(t *testing.T) {
	var calls atomic.Int32
	attempt := func(ctx context.Context, tor models.RankedTorrent) (*models.StreamLink, error) {
		calls.Add(1)
		return nil, apperrors.NewAuthError("test", errors.New("bad token"))
	}

	links, err := testEngine(1).resolveAll(context.Background(), candidates(10), 3, attempt)
	assert.Nil(t, links)
	require.Error(t, err)
	assert.True(t, apperrors.IsAuth(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolveAllRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	attempt := func(ctx context.Context, tor models.RankedTorrent) (*models.StreamLink, error) {
		if calls.Add(1) < 3 {
			return nil, transient(errors.New("HTTP 503"))
		}
		return &models.StreamLink{URL: "ok"}, nil
	}

	links, err := testEngine(1).resolveAll(context.Background(), candidates(1), 1, attempt)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestResolveAllSkipsPermanentErrors(t *testing.T) {
	var calls atomic.Int32
	attempt := func(ctx context.Context, tor models.RankedTorrent) (*models.StreamLink, error) {
		calls.Add(1)
		if tor.InfoHash == "0" {
			return nil, errors.New("magnet rejected")
		}
		return &models.StreamLink{URL: "u" + tor.InfoHash}, nil
	}

	links, err := testEngine(1).resolveAll(context.Background(), candidates(2), 5, attempt)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "u1", links[0].URL)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolveAllNothingToDo(t *testing.T) {
	links, err := testEngine(1).resolveAll(context.Background(), nil, 3, nil)
	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(transient(errors.New("x"))))
	assert.False(t, isTransient(errors.New("x")))
	assert.False(t, isTransient(transient(context.Canceled)))
}

func TestEngineLogsCarryProvider(t *testing.T) {
	var buf bytes.Buffer
	e := newEngine("alldebrid", Options{Logger: logger.NewWithWriter(&buf, "info")}.withDefaults())

	attempt := func(ctx context.Context, tor models.RankedTorrent) (*models.StreamLink, error) {
		return &models.StreamLink{URL: "https://cdn/" + tor.InfoHash}, nil
	}
	_, err := e.resolveAll(context.Background(), candidates(1), 1, attempt)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"provider":"alldebrid"`)
	assert.Contains(t, buf.String(), "resolved 1/1 links")
}
