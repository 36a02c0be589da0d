package debrid

import (
	"context"
	"testing"

	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct{ name string }

func (s stubService) Name() string { return s.name }

func (s stubService) Resolve(context.Context, []models.RankedTorrent, string, *EpisodeFilter, int) ([]models.StreamLink, error) {
	return nil, nil
}

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry(Options{})
	assert.Equal(t, []string{"alldebrid", "realdebrid"}, r.Names())

	svc, err := r.Get("AllDebrid")
	require.NoError(t, err)
	assert.Equal(t, "alldebrid", svc.Name())

	again, err := r.Get("alldebrid")
	require.NoError(t, err)
	assert.Same(t, svc, again)

	_, ok := svc.(MagnetDeleter)
	assert.True(t, ok)
}

func TestRegistryUnknownProvider(t *testing.T) {
	_, err := NewRegistry(Options{}).Get("premiumize")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnknownProvider))
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry(Options{})
	r.Register("Stub", func(Options) Service { return stubService{name: "stub"} })

	assert.Contains(t, r.Names(), "stub")
	svc, err := r.Get("stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", svc.Name())
}
