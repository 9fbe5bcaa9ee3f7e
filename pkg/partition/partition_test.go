package partition_test

import (
	"testing"

	"github.com/chris-alexander-pop/streamwork/pkg/partition"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestOf_Deterministic(t *testing.T) {
	id := uuid.New()
	p1 := partition.Of(id, 10000)
	p2 := partition.Of(id, 10000)
	require.Equal(t, p1, p2)
	require.GreaterOrEqual(t, p1, 0)
	require.Less(t, p1, 10000)
}

func TestOf_DefaultsWhenCountNonPositive(t *testing.T) {
	id := uuid.New()
	require.Equal(t, partition.Of(id, 0), partition.Of(id, partition.DefaultCount))
}

func TestOf_SpreadsAcrossPartitions(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		seen[partition.Of(uuid.New(), 16)] = true
	}
	require.Greater(t, len(seen), 1, "expected more than one partition bucket to be hit")
}
