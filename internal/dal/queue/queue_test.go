package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/adapters/memory"
	"syncdal/internal/dal/records"
	"syncdal/internal/dal/types"
)

type outcomeCollector struct {
	mu   sync.Mutex
	cond *sync.Cond
	got  map[types.RequestID]types.Outcome
}

func attachCollector(q *DispatchQueue) *outcomeCollector {
	oc := &outcomeCollector{got: make(map[types.RequestID]types.Outcome)}
	oc.cond = sync.NewCond(&oc.mu)
	q.AttachOnSuccess(func(_ adapter.AdapterID, req types.RequestID, rec types.Record) {
		oc.mu.Lock()
		oc.got[req] = types.Success(rec)
		oc.cond.Broadcast()
		oc.mu.Unlock()
	})
	q.AttachOnFailure(func(_ adapter.AdapterID, req types.RequestID, objID types.ObjectID, reason types.FailureReason) {
		oc.mu.Lock()
		oc.got[req] = types.Failure(objID, reason)
		oc.cond.Broadcast()
		oc.mu.Unlock()
	})
	return oc
}

func (oc *outcomeCollector) wait(t *testing.T, req types.RequestID, timeout time.Duration) types.Outcome {
	t.Helper()
	deadline := time.Now().Add(timeout)
	oc.mu.Lock()
	defer oc.mu.Unlock()
	for {
		if o, ok := oc.got[req]; ok {
			return o
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("timed out waiting for outcome of request %d", req)
		}
		timer := time.AfterFunc(remaining, func() { oc.cond.Broadcast() })
		oc.cond.Wait()
		timer.Stop()
	}
}

func TestQueue_SinglePrimaryInsertAndRead(t *testing.T) {
	q := New(types.KindDevice, DefaultParams(), nil, nil)
	q.Start()
	t.Cleanup(q.Stop)
	oc := attachCollector(q)

	ba := memory.New(types.KindDevice)
	q.AttachAdapter(ba)

	dev := records.NewDevice(types.NewObjectID())
	req, ok := q.SubmitInsert(dev)
	require.True(t, ok)
	out := oc.wait(t, req, time.Second)
	require.True(t, out.Success)

	req, ok = q.SubmitRead(types.ByID, dev.ObjectID())
	require.True(t, ok)
	out = oc.wait(t, req, time.Second)
	require.True(t, out.Success)
}

func TestQueue_AllWriteFirstSuccessDominates(t *testing.T) {
	p := DefaultParams()
	p.Mode = ModeAllReadAllWrite
	q := New(types.KindDevice, p, nil, nil)
	q.Start()
	t.Cleanup(q.Stop)
	oc := attachCollector(q)

	fast := memory.New(types.KindDevice)
	slow := memory.New(types.KindDevice)
	slow.NeverComplete = true
	q.AttachAdapter(fast)
	q.AttachAdapter(slow)

	dev := records.NewDevice(types.NewObjectID())
	req, ok := q.SubmitInsert(dev)
	require.True(t, ok)
	out := oc.wait(t, req, time.Second)
	assert.True(t, out.Success, "one adapter completing should be enough for a caller-visible success")
}

func TestQueue_AllWriteFailsOnlyAfterEveryTargetFails(t *testing.T) {
	p := DefaultParams()
	p.Mode = ModeAllReadAllWrite
	q := New(types.KindDevice, p, nil, nil)
	q.Start()
	t.Cleanup(q.Stop)
	oc := attachCollector(q)

	a := memory.New(types.KindDevice)
	b := memory.New(types.KindDevice)
	a.RejectNext = true
	b.RejectNext = true
	q.AttachAdapter(a)
	q.AttachAdapter(b)

	dev := records.NewDevice(types.NewObjectID())
	req, ok := q.SubmitInsert(dev)
	require.True(t, ok)
	out := oc.wait(t, req, time.Second)
	assert.False(t, out.Success)
}

func TestQueue_PushToBackOnConsecutiveFailures(t *testing.T) {
	p := DefaultParams()
	p.MaxWriteFailures = 1
	p.FailureAction = ActionPushToBack
	q := New(types.KindDevice, p, nil, nil)
	q.Start()
	t.Cleanup(q.Stop)
	oc := attachCollector(q)

	bad := memory.New(types.KindDevice)
	good := memory.New(types.KindDevice)
	badID := q.AttachAdapter(bad)
	q.AttachAdapter(good)
	bad.RejectNext = true

	dev := records.NewDevice(types.NewObjectID())
	req, ok := q.SubmitInsert(dev)
	require.True(t, ok)
	out := oc.wait(t, req, time.Second)
	require.False(t, out.Success, "primary-only routing sends the write to the rejecting primary alone")

	primary, _ := q.PrimaryID()
	assert.NotEqual(t, badID, primary, "the failing adapter should have been pushed behind the healthy one")
}

func TestQueue_IntakeParksUntilAdapterAttached(t *testing.T) {
	q := New(types.KindDevice, DefaultParams(), nil, nil)
	q.Start()
	t.Cleanup(q.Stop)
	oc := attachCollector(q)

	// Submitted into an empty adapter list: the router must hold the
	// intake rather than failing it.
	dev := records.NewDevice(types.NewObjectID())
	req, ok := q.SubmitInsert(dev)
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	oc.mu.Lock()
	_, done := oc.got[req]
	oc.mu.Unlock()
	require.False(t, done, "intake must wait for an adapter, not fail")

	q.AttachAdapter(memory.New(types.KindDevice))
	out := oc.wait(t, req, time.Second)
	assert.True(t, out.Success)
}

func TestQueue_DetachRemovesAdapter(t *testing.T) {
	q := New(types.KindDevice, DefaultParams(), nil, nil)
	q.Start()
	t.Cleanup(q.Stop)

	ba := memory.New(types.KindDevice)
	id := q.AttachAdapter(ba)
	assert.True(t, q.DetachAdapter(id))
	assert.False(t, q.DetachAdapter(id))
	_, ok := q.PrimaryID()
	assert.False(t, ok)
}
