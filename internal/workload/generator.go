// Package workload drives an ordered map with generated or recorded
// operations and cross-checks every result against a plain Go map.
package workload

import (
	"math/rand"

	"github.com/Sumatoshi-tech/ordmap/internal/oplog"
)

// Source yields operations until it returns io.EOF.
type Source interface {
	Next() (oplog.Op, error)
}

// Generator produces a reproducible random mix of inserts, deletes and
// finds over [0, keySpace).
type Generator struct {
	rng         *rand.Rand
	keySpace    uint32
	insertRatio float64
	deleteRatio float64
}

// NewGenerator creates a Generator. Operations that are neither inserts nor
// deletes are finds.
func NewGenerator(seed int64, keySpace uint32, insertRatio, deleteRatio float64) *Generator {
	return &Generator{
		rng:         rand.New(rand.NewSource(seed)), //nolint:gosec // reproducible workloads, not security
		keySpace:    max(keySpace, 1),
		insertRatio: insertRatio,
		deleteRatio: deleteRatio,
	}
}

// Next returns the next operation. It never fails.
func (g *Generator) Next() (oplog.Op, error) {
	roll := g.rng.Float64()
	key := uint32(g.rng.Int63n(int64(g.keySpace)))

	switch {
	case roll < g.insertRatio:
		return oplog.Op{Kind: oplog.KindInsert, Key: key, Value: g.rng.Uint32()}, nil
	case roll < g.insertRatio+g.deleteRatio:
		return oplog.Op{Kind: oplog.KindDelete, Key: key}, nil
	default:
		return oplog.Op{Kind: oplog.KindFind, Key: key}, nil
	}
}
