package catalogdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lascatalog/internal/catalog"
	"github.com/banshee-data/lascatalog/internal/geom"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveLoadCatalogRoundTrip(t *testing.T) {
	db := openTestDB(t)

	entries := []catalog.Entry{
		{Path: "b.xyz", Bounds: geom.BBox{MinX: 1000, MinY: 0, MaxX: 2000, MaxY: 1000}, Points: 20},
		{Path: "a.xyz", Bounds: geom.BBox{MinX: 0, MinY: 0, MaxX: 1000, MaxY: 1000}, Points: 10},
	}
	require.NoError(t, db.SaveCatalog("site", entries))

	c, err := db.LoadCatalog("site")
	require.NoError(t, err)
	if diff := cmp.Diff(entries, c.Entries()); diff != "" {
		t.Errorf("entry order not preserved (-want +got):\n%s", diff)
	}

	// Re-saving replaces, not appends.
	require.NoError(t, db.SaveCatalog("site", entries[:1]))
	c, err = db.LoadCatalog("site")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestLoadCatalogMissing(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadCatalog("nope")
	assert.Error(t, err, "missing catalog should fail")
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	run := &Run{
		ID: "run-1", Catalog: "site", FuncName: "zmax",
		Resolution: 10, Buffer: 15, TileCount: 4,
		Status: RunStatusRunning, StartedAt: time.Now().UTC(),
	}
	require.NoError(t, db.InsertRun(run))
	require.NoError(t, db.FinishRun("run-1", RunStatusFailed, []int{2, 3}))

	got, err := db.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, []int{2, 3}, got.FailedTiles)
	assert.NotNil(t, got.CompletedAt, "CompletedAt should be set")

	assert.Error(t, db.FinishRun("ghost", RunStatusComplete, nil),
		"finishing an unknown run should fail")
}
