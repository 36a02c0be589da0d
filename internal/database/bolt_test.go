package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *BoltDB {
	t.Helper()
	db, err := NewBolt(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStoreAndGetMagnets(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.StoreMagnet(&Magnet{ID: "a", Hash: "h1", Provider: "alldebrid", RemoteID: "11", APIKey: "key"}))
	require.NoError(t, db.StoreMagnet(&Magnet{ID: "a", Hash: "h1", Name: "updated"}))
	require.NoError(t, db.StoreMagnet(&Magnet{ID: "b", Hash: "h2"}))

	magnets, err := db.GetMagnets()
	require.NoError(t, err)
	require.Len(t, magnets, 2)
	assert.Equal(t, "updated", magnets[0].Name)
	assert.False(t, magnets[0].AddedAt.IsZero())
}

func TestStoreMagnetRequiresID(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, db.StoreMagnet(&Magnet{Hash: "h"}))
	assert.Error(t, db.StoreMagnet(nil))
}

func TestGetOldMagnets(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }

	require.NoError(t, db.StoreMagnet(&Magnet{ID: "old", AddedAt: now.Add(-5 * time.Hour)}))
	require.NoError(t, db.StoreMagnet(&Magnet{ID: "fresh", AddedAt: now.Add(-time.Hour)}))

	old, err := db.GetOldMagnets(4 * time.Hour)
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, "old", old[0].ID)
}

func TestDeleteMagnet(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.StoreMagnet(&Magnet{ID: "a"}))

	require.NoError(t, db.DeleteMagnet("a"))
	require.NoError(t, db.DeleteMagnet("missing"))

	magnets, err := db.GetMagnets()
	require.NoError(t, err)
	assert.Empty(t, magnets)
}
