package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdal/internal/dal/records"
	"syncdal/internal/dal/types"
)

func TestCache_ReadObservesPendingDelete(t *testing.T) {
	c, ba, oc := newTestCache(t, DefaultParams())
	ba.NeverComplete = true // a fall-through read would never complete

	// Commit the INSERT so the object sits in the cache with no pending
	// mutation, then queue a fresh DELETE against it.
	dev := records.NewDevice(types.NewObjectID())
	require.True(t, c.SubmitInsert(1, dev))
	oc.wait(t, 1, time.Second)
	require.True(t, c.Commit())
	require.Eventually(t, func() bool {
		return c.CacheInfo().PendingMutations == 0
	}, time.Second, 5*time.Millisecond, "commit never drained the pending mutation")

	require.True(t, c.SubmitDelete(2, dev.ObjectID()))
	require.True(t, oc.wait(t, 2, time.Second).Success)

	require.True(t, c.SubmitRead(3, types.ByID, dev.ObjectID()))
	out := oc.wait(t, 3, time.Second)
	assert.False(t, out.Success)
	assert.Equal(t, types.ReasonNotFound, out.Reason)
}

func TestCache_DoubleDeleteFails(t *testing.T) {
	c, ba, oc := newTestCache(t, DefaultParams())
	ba.NeverComplete = true

	dev := records.NewDevice(types.NewObjectID())
	require.True(t, c.SubmitInsert(1, dev))
	oc.wait(t, 1, time.Second)
	require.True(t, c.SubmitUpdate(2, dev))
	oc.wait(t, 2, time.Second)
	require.True(t, c.SubmitDelete(3, dev.ObjectID()))
	require.True(t, oc.wait(t, 3, time.Second).Success)

	require.True(t, c.SubmitDelete(4, dev.ObjectID()))
	out := oc.wait(t, 4, time.Second)
	assert.False(t, out.Success)
	assert.Equal(t, types.ReasonNotFound, out.Reason)
}

func TestCache_EvictionDropsCommittedObjects(t *testing.T) {
	p := fastParams()
	p.MaxCacheSize = 1
	p.AlwaysEvict = true
	c, _, oc := newTestCache(t, p)

	dev := records.NewDevice(types.NewObjectID())
	require.True(t, c.SubmitInsert(1, dev))
	oc.wait(t, 1, time.Second)

	// The commit cycle drains the pending INSERT, advances the global age
	// past the object's, and the always-evict pass drops it.
	require.Eventually(t, func() bool {
		return c.CacheInfo().CachedObjects == 0
	}, 2*time.Second, 10*time.Millisecond, "committed object was never evicted")
}

func TestCache_ReadHitDoesNotPinObjectAgainstEviction(t *testing.T) {
	c, _, oc := newTestCache(t, DefaultParams())

	commit := func() {
		t.Helper()
		require.True(t, c.Commit())
		require.Eventually(t, func() bool {
			return c.CacheInfo().PendingMutations == 0
		}, time.Second, 5*time.Millisecond, "commit never drained the pending mutations")
	}

	dev := records.NewDevice(types.NewObjectID())
	require.True(t, c.SubmitInsert(1, dev))
	oc.wait(t, 1, time.Second)
	commit()

	// Read the object via a cache hit; the caller gets an independent
	// copy, so the cached original must still age out.
	require.True(t, c.SubmitRead(2, types.ByID, dev.ObjectID()))
	require.True(t, oc.wait(t, 2, time.Second).Success)
	require.Equal(t, 1, c.CacheInfo().CachedObjects)

	// The next commit cycle advances the global age past the read-bumped
	// age and its eviction pass must drop the object.
	p := DefaultParams()
	p.AlwaysEvict = true
	c.SetParams(p)
	other := records.NewDevice(types.NewObjectID())
	require.True(t, c.SubmitInsert(3, other))
	oc.wait(t, 3, time.Second)
	commit()

	require.Eventually(t, func() bool {
		return c.CacheInfo().CachedObjects == 0
	}, 2*time.Second, 10*time.Millisecond, "object read via a hit was never evicted")
}

func TestCache_GlobalAgeAdvancesPerCommitCycle(t *testing.T) {
	c, _, oc := newTestCache(t, fastParams())

	before := c.CacheInfo().GlobalAge
	dev := records.NewDevice(types.NewObjectID())
	require.True(t, c.SubmitInsert(1, dev))
	oc.wait(t, 1, time.Second)

	require.Eventually(t, func() bool {
		return c.CacheInfo().GlobalAge > before
	}, 2*time.Second, 10*time.Millisecond, "commit cycle never advanced the global age")
}
