package registry_test

import (
	"testing"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/registry"
	"github.com/stretchr/testify/require"
)

func TestRank_SortedPosition(t *testing.T) {
	rank, n := registry.Rank("i2", []string{"i2", "i1", "i3"})
	require.Equal(t, 1, rank)
	require.Equal(t, 3, n)
}

func TestRank_NotPresent(t *testing.T) {
	rank, n := registry.Rank("i4", []string{"i1", "i2"})
	require.Equal(t, -1, rank)
	require.Equal(t, 2, n)
}

func TestAliveIDs_FiltersStale(t *testing.T) {
	now := time.Now()
	instances := []registry.Instance{
		{InstanceID: "fresh", LastHeartbeatAt: now},
		{InstanceID: "stale", LastHeartbeatAt: now.Add(-20 * time.Minute)},
	}
	ids := registry.AliveIDs(instances, now, 10*time.Minute)
	require.Equal(t, []string{"fresh"}, ids)
}
