package cluster

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionRoundRobin(t *testing.T) {
	parts := Partition([]int{10, 11, 12, 13, 14, 15, 16}, 3)
	require.Equal(t, [][]int{{10, 13, 16}, {11, 14}, {12, 15}}, parts)
}

func TestPartitionCoversIndices(t *testing.T) {
	indices := make([]int, 1000)
	for i := range indices {
		indices[i] = (i * 7919) % 1000
	}
	parts := Partition(indices, 7)
	require.Len(t, parts, 7)
	var all []int
	for w, p := range parts {
		// worker w keeps the relative order of its stride
		for i, idx := range p {
			require.Equal(t, indices[w+i*7], idx)
		}
		all = append(all, p...)
	}
	sort.Ints(all)
	for i, idx := range all {
		require.Equal(t, i, idx)
	}
}

func TestPartitionMoreWorkersThanIndices(t *testing.T) {
	parts := Partition([]int{1, 2}, 4)
	require.Equal(t, [][]int{{1}, {2}, {}, {}}, parts)
	parts = Partition(nil, 0)
	require.Len(t, parts, 1)
	require.Empty(t, parts[0])
}
