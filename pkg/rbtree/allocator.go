package rbtree

import (
	"math"
	"unsafe"

	"github.com/Sumatoshi-tech/ordmap/pkg/safeconv"
)

// maxSlot is the last slot index an Allocator may hand out.
const maxSlot = math.MaxUint32 - 1

// NodeBytes is the size of one slot in the table.
const NodeBytes = uint64(unsafe.Sizeof(node{}))

// Allocator is the slot table backing the nodes of one or more RBTrees.
//
// Slot 0 is reserved and stands for the absent link. Freed slots are
// remembered and handed out again before the table grows.
type Allocator struct {
	storage []node
	gaps    map[uint32]bool

	// Limit caps the number of live nodes. Zero means unlimited.
	Limit int
}

// NewAllocator creates a new allocator for RBTree's nodes.
func NewAllocator() *Allocator {
	return &Allocator{
		storage: []node{},
		gaps:    map[uint32]bool{},
	}
}

// Size returns the number of slots in the table, the reserved one included.
func (allocator *Allocator) Size() int {
	return len(allocator.storage)
}

// Used returns the number of occupied slots, the reserved one included.
func (allocator *Allocator) Used() int {
	return len(allocator.storage) - len(allocator.gaps)
}

// Live returns the number of nodes currently handed out.
func (allocator *Allocator) Live() int {
	used := allocator.Used()
	if used == 0 {
		return 0
	}

	return used - 1
}

// Bytes estimates the memory held by the slot table.
func (allocator *Allocator) Bytes() uint64 {
	slots := safeconv.MustIntToUint64(cap(allocator.storage))

	return slots * NodeBytes
}

func (allocator *Allocator) malloc() (uint32, error) {
	if allocator.Limit > 0 && allocator.Live() >= allocator.Limit {
		return 0, ErrAllocation
	}

	if len(allocator.gaps) > 0 {
		var key uint32

		for key = range allocator.gaps {
			break
		}

		delete(allocator.gaps, key)

		return key, nil
	}

	nodeLen := len(allocator.storage)
	if nodeLen == 0 {
		// Zero is reserved.
		allocator.storage = append(allocator.storage, node{})
		nodeLen = 1
	}

	if nodeLen > maxSlot {
		return 0, ErrAllocation
	}

	allocator.storage = append(allocator.storage, node{})

	return safeconv.MustIntToUint32(nodeLen), nil
}

func (allocator *Allocator) free(nodeIdx uint32) {
	if nodeIdx == 0 {
		panic("node #0 is special and cannot be deallocated")
	}

	_, exists := allocator.gaps[nodeIdx]
	doAssert(!exists)

	allocator.storage[nodeIdx] = node{}
	allocator.gaps[nodeIdx] = true
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}
