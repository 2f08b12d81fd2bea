package topology

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
)

// PartitionForKey computes which partition owns a key value.
//
// Routing formula: partitionID = Hash(canonical(key)) % partitionCount
//
// Properties:
//   - Deterministic: same key always routes to same partition
//   - Stable: assignment doesn't change unless partitionCount changes
//   - Versioned: hash function change = breaking change
func PartitionForKey(key any, partitionCount int) int {
	if partitionCount <= 0 {
		return 0
	}
	return int(KeyHash(key) % uint64(partitionCount))
}

// PartitionForKeys computes which partition owns a compound key, in key
// order. A single key routes exactly as PartitionForKey; further keys fold
// their hashes into the first FNV-style, so co-partitioned two-key
// procedures land where both key values agree.
func PartitionForKeys(keys []any, partitionCount int) int {
	if partitionCount <= 0 || len(keys) == 0 {
		return 0
	}
	h := KeyHash(keys[0])
	for _, k := range keys[1:] {
		h = (h ^ KeyHash(k)) * 1099511628211
	}
	return int(h % uint64(partitionCount))
}

// KeyHash hashes a partition key value over its canonical byte form.
// Integer types of different widths holding the same value hash alike.
func KeyHash(key any) uint64 {
	h := fnv.New64a()

	var buf [8]byte
	switch v := key.(type) {
	case nil:
		// Null keys all land on the same partition.
		return 0
	case string:
		h.Write([]byte(v))
	case []byte:
		h.Write(v)
	case int:
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		h.Write(buf[:])
	case int8:
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		h.Write(buf[:])
	case int16:
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		h.Write(buf[:])
	case int32:
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		h.Write(buf[:])
	case int64:
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	case uint64:
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	case float64:
		// JSON-decoded numbers arrive as float64; integral values hash
		// like their integer counterparts.
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		} else {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		}
		h.Write(buf[:])
	default:
		h.Write([]byte(fmt.Sprintf("%v", v)))
	}

	return h.Sum64()
}

// PartitionForProcedure pins a directed procedure to a stable partition
// derived from its name.
func PartitionForProcedure(name string, partitionCount int) int {
	return PartitionForKey(name, partitionCount)
}
