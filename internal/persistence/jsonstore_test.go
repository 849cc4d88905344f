package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"facilityd/internal/store"
)

func TestLoadMissingFilesReturnsEmptySnapshot(t *testing.T) {
	j, err := New(t.TempDir())
	require.NoError(t, err)

	snap, err := j.Load()
	require.NoError(t, err)
	require.Empty(t, snap.Facilities)
	require.Zero(t, snap.NextID)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	j, err := New(t.TempDir())
	require.NoError(t, err)

	snap := store.Snapshot{
		Facilities: map[string][]store.Booking{
			"Lab_101": {{ID: 1, FacilityName: "Lab_101", Start: 1000, End: 2000}},
		},
		NextID: 2,
	}
	require.NoError(t, j.Save(snap))

	loaded, err := j.Load()
	require.NoError(t, err)
	require.Equal(t, snap.Facilities, loaded.Facilities)
	require.Equal(t, snap.NextID, loaded.NextID)
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	_, err := New(dir)
	require.NoError(t, err)
}
