package rbtree //nolint:testpackage // tests require access to unexported fields (storage, gaps, root, etc.)

import (
	"math"
	"math/rand"
	"slices"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Create a tree mapping each key to itself.
func testNewIntSet() *RBTree {
	return NewRBTree(NewAllocator())
}

func mustInsert(tb testing.TB, tree *RBTree, keys ...uint32) {
	tb.Helper()

	for _, key := range keys {
		require.NoError(tb, tree.Insert(key, key))
	}
}

func inorder(tree *RBTree) []uint32 {
	var keys []uint32

	tree.Render(func(_ int, item Item, _ Color) {
		keys = append(keys, item.Key)
	})

	slices.Reverse(keys)

	return keys
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, 0, tree.Height())

	_, err := tree.Find(10)
	require.ErrorIs(t, err, ErrNotFound)

	_, ok := tree.Get(10)
	assert.False(t, ok)

	height, err := tree.BlackHeight()
	require.NoError(t, err)
	assert.Equal(t, 1, height)

	_, _, ok = tree.Root()
	assert.False(t, ok)
}

func TestInsertFind(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	require.NoError(t, tree.Insert(10, 100))
	assert.Equal(t, 1, tree.Len())

	item, err := tree.Find(10)
	require.NoError(t, err)
	assert.Equal(t, Item{Key: 10, Value: 100}, item)

	_, err = tree.Find(9)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = tree.Find(11)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInsertOverwrite(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	mustInsert(t, tree, 5, 3, 8)

	before := slices.Clone(tree.storage())
	rotations := tree.Stats().Rotations

	require.NoError(t, tree.Insert(3, 42))
	assert.Equal(t, 3, tree.Len())
	assert.Equal(t, rotations, tree.Stats().Rotations)

	value, ok := tree.Get(3)
	require.True(t, ok)
	assert.Equal(t, uint32(42), value)

	// Only the value changed.
	after := tree.storage()
	for idx := range before {
		if before[idx].item.Key == 3 && idx != 0 {
			before[idx].item.Value = 42
		}
	}

	assert.Equal(t, before, after)
	require.NoError(t, tree.Verify())
}

func TestThreeAscending(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	mustInsert(t, tree, 10, 20, 30)

	root, color, ok := tree.Root()
	require.True(t, ok)
	assert.Equal(t, uint32(20), root.Key)
	assert.Equal(t, Black, color)

	alloc := tree.storage()
	left, right := alloc[tree.root].left, alloc[tree.root].right
	assert.Equal(t, uint32(10), alloc[left].item.Key)
	assert.Equal(t, uint32(30), alloc[right].item.Key)
	assert.Equal(t, Red, alloc[left].color)
	assert.Equal(t, Red, alloc[right].color)

	height, err := tree.BlackHeight()
	require.NoError(t, err)
	assert.Equal(t, 2, height)
}

func TestDeleteTwoChildrenUsesSuccessor(t *testing.T) {
	t.Parallel()

	tree := NewRBTree(NewAllocator())

	for key := uint32(1); key <= 7; key++ {
		require.NoError(t, tree.Insert(key, key*100))
	}

	require.NoError(t, tree.Verify())

	alloc := tree.storage()
	four := tree.lookup(4)
	require.NotZero(t, alloc[four].left)
	require.NotZero(t, alloc[four].right)

	parent, color := alloc[four].parent, alloc[four].color

	require.NoError(t, tree.Delete(4))

	_, err := tree.Find(4)
	require.ErrorIs(t, err, ErrNotFound)

	item, err := tree.Find(5)
	require.NoError(t, err)
	assert.Equal(t, uint32(500), item.Value)

	// 5 now hangs where 4 was and wears its color.
	five := tree.lookup(5)
	assert.Equal(t, parent, alloc[five].parent)
	assert.Equal(t, color, alloc[five].color)
	assert.Equal(t, uint32(3), alloc[alloc[five].left].item.Key)
	assert.Equal(t, uint32(6), alloc[alloc[five].right].item.Key)
	assert.Equal(t, []uint32{1, 2, 3, 5, 6, 7}, inorder(tree))
	require.NoError(t, tree.Verify())
}

func TestDeleteOnlyNode(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	mustInsert(t, tree, 42)
	require.NoError(t, tree.Delete(42))

	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, uint32(0), tree.root)

	_, err := tree.Find(42)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, tree.Verify())
}

func TestDeleteMissing(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	require.ErrorIs(t, tree.Delete(10), ErrNotFound)

	mustInsert(t, tree, 1, 2, 3)

	before := slices.Clone(tree.storage())
	err := tree.Delete(10)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "delete 10: key not found", err.Error())
	assert.Equal(t, before, tree.storage())
	assert.Equal(t, 3, tree.Len())
}

func TestDeleteFreesSlot(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator()
	tree := NewRBTree(alloc)
	mustInsert(t, tree, 7, 8)
	require.NoError(t, tree.Delete(8))

	assert.Equal(t, []node{{}, {color: Black, item: Item{7, 7}}, {}}, alloc.storage)
	assert.Equal(t, map[uint32]bool{2: true}, alloc.gaps)

	// The freed slot is reused.
	mustInsert(t, tree, 10)
	assert.Equal(t, 3, alloc.Size())
	assert.Empty(t, alloc.gaps)
	assert.Equal(t, node{parent: 1, color: Red, item: Item{10, 10}}, alloc.storage[2])
}

func TestInsertThenDeleteAll(t *testing.T) {
	t.Parallel()

	const numKeys = 2000

	tree := testNewIntSet()
	rng := rand.New(rand.NewSource(1))
	keys := make([]uint32, numKeys)

	for idx := range keys {
		keys[idx] = uint32(idx) * 3
	}

	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	mustInsert(t, tree, keys...)
	require.NoError(t, tree.Verify())
	assert.Equal(t, numKeys, tree.Len())

	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	for _, key := range keys {
		require.NoError(t, tree.Delete(key))
	}

	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, 1, tree.Allocator().Used())
	require.NoError(t, tree.Verify())
}

func TestHeightBound(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := range uint32(4095) {
		require.NoError(t, tree.Insert(key, key))

		n := float64(tree.Len())
		assert.LessOrEqual(t, float64(tree.Height()), 2*math.Log2(n+1))
	}
}

// The sorted slice is the oracle: every operation is mirrored on it.
type oracle struct {
	keys   []int
	values map[int]uint32
}

func newOracle() *oracle {
	return &oracle{values: map[int]uint32{}}
}

func (o *oracle) Insert(key int, value uint32) {
	if _, ok := o.values[key]; !ok {
		idx := sort.SearchInts(o.keys, key)
		o.keys = slices.Insert(o.keys, idx, key)
	}

	o.values[key] = value
}

func (o *oracle) RandomExistingKey(rng *rand.Rand) int {
	return o.keys[rng.Intn(len(o.keys))]
}

func (o *oracle) Delete(key int) bool {
	if _, ok := o.values[key]; !ok {
		return false
	}

	idx := sort.SearchInts(o.keys, key)
	o.keys = slices.Delete(o.keys, idx, idx+1)
	delete(o.values, key)

	return true
}

func compareContentsFull(tb testing.TB, orc *oracle, tree *RBTree) {
	tb.Helper()

	require.Equal(tb, len(orc.keys), tree.Len())

	got := inorder(tree)
	for idx, key := range orc.keys {
		require.Equal(tb, uint32(key), got[idx])

		value, ok := tree.Get(uint32(key))
		require.True(tb, ok)
		require.Equal(tb, orc.values[key], value)
	}

	require.NoError(tb, tree.Verify())
}

func TestRandomized(t *testing.T) {
	t.Parallel()

	const numKeys = 1000

	orc := newOracle()
	tree := testNewIntSet()
	rng := rand.New(rand.NewSource(0))

	for range 10000 {
		op := rng.Int31n(100)

		switch {
		case op < 50:
			key := int(rng.Int31n(numKeys))
			value := rng.Uint32()
			orc.Insert(key, value)
			require.NoError(t, tree.Insert(uint32(key), value))
			compareContentsFull(t, orc, tree)
		case op < 90 && len(orc.keys) > 0:
			key := orc.RandomExistingKey(rng)
			orc.Delete(key)
			require.NoError(t, tree.Delete(uint32(key)), "DeleteExisting %d", key)
			compareContentsFull(t, orc, tree)
		default:
			key := int(rng.Int31n(numKeys))
			want, present := orc.values[key]
			got, ok := tree.Get(uint32(key))
			require.Equal(t, present, ok)
			require.Equal(t, want, got)
		}
	}

	stats := tree.Stats()
	for idx, hits := range stats.InsertCases {
		assert.Positive(t, hits, "insert case %d", idx+1)
	}

	for idx, hits := range stats.DeleteCases {
		assert.Positive(t, hits, "delete case %d", idx+1)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator()
	tree := NewRBTree(alloc)

	for idx := range 10 {
		require.NoError(t, tree.Insert(uint32(idx), uint32(idx)))
	}

	assert.Equal(t, 11, alloc.Used())
	tree.Clear()
	assert.Equal(t, 1, alloc.Used())
	assert.Equal(t, 11, alloc.Size())
	assert.Equal(t, 0, tree.Len())
	require.NoError(t, tree.Verify())

	// The tree is usable again.
	mustInsert(t, tree, 3)
	assert.Equal(t, 11, alloc.Size())
	tree.Clear()
	tree.Clear()
	assert.Equal(t, 0, tree.Len())
}

func TestSharedAllocator(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator()
	tree1 := NewRBTree(alloc)
	tree2 := NewRBTree(alloc)

	mustInsert(t, tree1, 1, 2, 3)
	mustInsert(t, tree2, 2, 3, 4)
	require.NoError(t, tree1.Delete(2))
	tree2.Clear()

	assert.Equal(t, []uint32{1, 3}, inorder(tree1))
	assert.Equal(t, 2, alloc.Live())
	require.NoError(t, tree1.Verify())
}

func TestAllocatorLimit(t *testing.T) {
	t.Parallel()

	tree := New(WithLimit(3))
	mustInsert(t, tree, 1, 2, 3)

	before := slices.Clone(tree.storage())
	err := tree.Insert(4, 4)
	require.ErrorIs(t, err, ErrAllocation)
	assert.Equal(t, "insert 4: node allocation failed", err.Error())
	assert.Equal(t, before, tree.storage())
	assert.Equal(t, 3, tree.Len())
	require.NoError(t, tree.Verify())

	// Overwrites need no allocation.
	require.NoError(t, tree.Insert(2, 20))

	require.NoError(t, tree.Delete(1))
	require.NoError(t, tree.Insert(4, 4))
	assert.Equal(t, []uint32{2, 3, 4}, inorder(tree))
}

func TestAllocatorFreeZero(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator()
	_, err := alloc.malloc()
	require.NoError(t, err)
	assert.PanicsWithValue(t, "node #0 is special and cannot be deallocated", func() { alloc.free(0) })
}

func TestAllocatorDoubleFree(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator()
	idx, err := alloc.malloc()
	require.NoError(t, err)
	alloc.free(idx)
	assert.PanicsWithValue(t, "rbtree internal assertion failed", func() { alloc.free(idx) })
}

func TestAllocatorCounters(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator()
	assert.Equal(t, 0, alloc.Size())
	assert.Equal(t, 0, alloc.Live())
	assert.Equal(t, uint64(0), alloc.Bytes())

	tree := NewRBTree(alloc)
	mustInsert(t, tree, 1, 2)
	assert.Equal(t, 3, alloc.Size())
	assert.Equal(t, 3, alloc.Used())
	assert.Equal(t, 2, alloc.Live())
	assert.Positive(t, alloc.Bytes())
}

func TestWithCapacity(t *testing.T) {
	t.Parallel()

	tree := New(WithCapacity(100))
	assert.Equal(t, 101, cap(tree.storage()))
	mustInsert(t, tree, 1, 2, 3)
	assert.Equal(t, 101, cap(tree.storage()))
}

func TestColorString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "R", Red.String())
	assert.Equal(t, "B", Black.String())
	assert.Equal(t, "?", Color(7).String())
}

func BenchmarkInsert(b *testing.B) {
	rng := rand.New(rand.NewSource(0))

	for b.Loop() {
		tree := New(WithCapacity(1024))
		for range 1024 {
			key := rng.Uint32()
			_ = tree.Insert(key, key)
		}
	}
}

func BenchmarkFind(b *testing.B) {
	tree := New()
	for key := range uint32(1 << 16) {
		_ = tree.Insert(key, key)
	}

	var key uint32

	for b.Loop() {
		_, _ = tree.Get(key & 0xffff)
		key++
	}
}

func BenchmarkDelete(b *testing.B) {
	for b.Loop() {
		b.StopTimer()

		tree := New(WithCapacity(1024))
		for key := range uint32(1024) {
			_ = tree.Insert(key, key)
		}

		b.StartTimer()

		for key := range uint32(1024) {
			_ = tree.Delete(key)
		}
	}
}
