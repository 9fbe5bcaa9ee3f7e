// Package partition computes the deterministic load-distribution partition
// for a stream id, the same way pkg/algorithms/consistenthash/bounded hashes
// a ring key: SHA-256 the identifier and fold the digest into a uint64.
package partition

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/google/uuid"
)

// DefaultCount is the default number of partitions (P in spec.md §3).
const DefaultCount = 10000

// Of returns the partition number for streamID in [0, count).
// It is a pure function of streamID: every instance computes the same
// answer, which is what makes partition-mod-N assignment reproducible
// across a fleet without coordination.
func Of(streamID uuid.UUID, count int) int {
	if count <= 0 {
		count = DefaultCount
	}
	sum := sha256.Sum256(streamID[:])
	h := binary.BigEndian.Uint64(sum[:8])
	return int(h % uint64(count))
}
