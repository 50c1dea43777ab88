// internal/arena/arena_test.go
package arena

import (
	"math"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocAndGet(t *testing.T) {
	a := New[string]()

	id1 := a.Alloc("one")
	id2 := a.Alloc("two")

	assert.NotEqual(t, id1, id2)
	assert.False(t, id1.IsNil())
	assert.Equal(t, 2, a.Len())

	v, ok := a.TryGet(id1)
	require.True(t, ok)
	assert.Equal(t, "one", *v)

	v, err := a.Get(id2)
	require.NoError(t, err)
	assert.Equal(t, "two", *v)
}

func TestNilIDNeverResolves(t *testing.T) {
	a := New[int]()
	a.Alloc(1)

	_, ok := a.TryGet(Nil)
	assert.False(t, ok)
	assert.True(t, Nil.IsNil())
	assert.Equal(t, "nil", Nil.String())
}

func TestStaleIDAfterReuse(t *testing.T) {
	a := New[string]()

	old := a.Alloc("old")
	require.True(t, a.Dealloc(old))
	assert.False(t, a.Dealloc(old), "second dealloc must report the id as invalid")

	fresh := a.Alloc("fresh")
	assert.Equal(t, old.Slot(), fresh.Slot(), "freed slot should be reused")
	assert.Greater(t, fresh.Generation(), old.Generation())

	_, ok := a.TryGet(old)
	assert.False(t, ok)
	_, err := a.Get(old)
	assert.ErrorIs(t, err, ErrStale)

	v, ok := a.TryGetMut(fresh)
	require.True(t, ok)
	assert.Equal(t, "fresh", *v)
}

func TestGetPair(t *testing.T) {
	a := New[int]()
	x := a.Alloc(1)
	y := a.Alloc(2)

	t.Run("distinct ids yield independent pointers", func(t *testing.T) {
		px, py, err := a.GetPair(x, y)
		require.NoError(t, err)
		*px, *py = *py, *px

		vx, _ := a.TryGet(x)
		vy, _ := a.TryGet(y)
		assert.Equal(t, 2, *vx)
		assert.Equal(t, 1, *vy)
	})

	t.Run("same id is rejected", func(t *testing.T) {
		_, _, err := a.GetPair(x, x)
		assert.ErrorIs(t, err, ErrAlias)
	})

	t.Run("stale id is rejected", func(t *testing.T) {
		z := a.Alloc(3)
		a.Dealloc(z)
		_, _, err := a.GetPair(x, z)
		assert.ErrorIs(t, err, ErrStale)
		_, _, err = a.GetPair(z, x)
		assert.ErrorIs(t, err, ErrStale)
	})
}

func TestRemoveReturnsValue(t *testing.T) {
	a := New[[]int]()
	id := a.Alloc([]int{1, 2, 3})

	v, ok := a.Remove(id)
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, v)
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 1, a.Free())

	_, ok = a.Remove(id)
	assert.False(t, ok)
}

func TestExhaustedGenerationRetiresSlot(t *testing.T) {
	a := New[int]()
	id := a.Alloc(7)
	a.entries[id.slot].generation = math.MaxUint32
	id.generation = math.MaxUint32

	require.True(t, a.Dealloc(id))
	assert.Equal(t, 0, a.Free(), "an exhausted slot must not go back on the free list")
	assert.Equal(t, 1, a.Stats().Retired)

	next := a.Alloc(8)
	assert.NotEqual(t, id.Slot(), next.Slot())
}

func TestPointersSurviveGrowth(t *testing.T) {
	a := New[[]string](WithCapacity(1))
	id := a.Alloc([]string{"first"})
	held, ok := a.TryGetMut(id)
	require.True(t, ok)

	for i := 0; i < 256; i++ {
		a.Alloc(nil)
	}
	*held = append(*held, "second")

	got, err := a.Get(id)
	require.NoError(t, err)
	assert.Same(t, held, got)
	assert.Equal(t, []string{"first", "second"}, *got)
}

func TestAllSkipsFreedSlots(t *testing.T) {
	a := New[string](WithCapacity(8))
	ids := []ID{a.Alloc("a"), a.Alloc("b"), a.Alloc("c")}
	a.Dealloc(ids[1])

	var seen []string
	for id, v := range a.All() {
		assert.True(t, a.Contains(id))
		seen = append(seen, *v)
	}
	assert.Equal(t, []string{"a", "c"}, seen)
}

func TestStats(t *testing.T) {
	a := New[int]()
	var ids []ID
	for i := 0; i < 5; i++ {
		ids = append(ids, a.Alloc(i))
	}
	a.Dealloc(ids[0])

	st := a.Stats()
	assert.Equal(t, Stats{Live: 4, Slots: 5, Free: 1, Allocs: 5, Deallocs: 1}, st)
}

// FuzzAllocDealloc drives random alloc/dealloc sequences and checks that every
// id freed before a reuse of its slot stays unresolvable.
func FuzzAllocDealloc(f *testing.F) {
	f.Add([]byte{1, 0, 1, 1, 0, 0, 1, 2, 3})
	f.Add([]byte{0, 0, 0, 0})

	f.Fuzz(func(t *testing.T, data []byte) {
		c := fuzz.NewConsumer(data)
		a := New[int]()

		var live []ID
		var dead []ID
		for step := 0; step < 256; step++ {
			doAlloc, err := c.GetBool()
			if err != nil {
				break
			}
			if doAlloc || len(live) == 0 {
				live = append(live, a.Alloc(step))
				continue
			}
			n, err := c.GetInt()
			if err != nil {
				break
			}
			idx := int(uint(n) % uint(len(live)))
			victim := live[idx]
			live = append(live[:idx], live[idx+1:]...)
			if !a.Dealloc(victim) {
				t.Fatalf("live id %s failed to dealloc", victim)
			}
			dead = append(dead, victim)
		}

		for _, id := range dead {
			if _, ok := a.TryGet(id); ok {
				t.Fatalf("deallocated id %s still resolves", id)
			}
		}
		for _, id := range live {
			if _, ok := a.TryGet(id); !ok {
				t.Fatalf("live id %s does not resolve", id)
			}
		}
		if a.Len() != len(live) {
			t.Fatalf("len mismatch: arena=%d tracked=%d", a.Len(), len(live))
		}
	})
}
