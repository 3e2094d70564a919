package cluster

// Partition divides indices across n workers by round-robin striding, so that worker i receives
// indices[i], indices[i+n], indices[i+2n] and so on. Partitions are disjoint, in order, and cover indices.
func Partition(indices []int, n int) [][]int {
	if n < 1 {
		n = 1
	}
	parts := make([][]int, n)
	for i := range parts {
		parts[i] = make([]int, 0, len(indices)/n+1)
	}
	for i, idx := range indices {
		parts[i%n] = append(parts[i%n], idx)
	}
	return parts
}
