package file

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/records"
	"syncdal/internal/dal/types"
	"syncdal/internal/infrastructure/concurrency"
)

type outcomeCollector struct {
	mu   sync.Mutex
	cond *sync.Cond
	got  map[types.RequestID]types.Outcome
}

func attachCollector(a *Adapter) *outcomeCollector {
	oc := &outcomeCollector{got: make(map[types.RequestID]types.Outcome)}
	oc.cond = sync.NewCond(&oc.mu)
	a.AttachOnSuccess(func(_ adapter.AdapterID, req types.RequestID, rec types.Record) {
		oc.mu.Lock()
		oc.got[req] = types.Success(rec)
		oc.cond.Broadcast()
		oc.mu.Unlock()
	})
	a.AttachOnFailure(func(_ adapter.AdapterID, req types.RequestID, objID types.ObjectID, reason types.FailureReason) {
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

func newTestAdapter(t *testing.T, dir string) (*Adapter, *outcomeCollector) {
	t.Helper()
	pool := concurrency.NewWorkerPool(concurrency.Config{
		MinWorkers: 1, MaxWorkers: 2, QueueDepth: 32, IdleTimeout: time.Second,
	}, nil)
	pool.Start()
	t.Cleanup(pool.Stop)

	a := New(types.KindUser, dir, pool, nil)
	require.True(t, a.Connect())
	return a, attachCollector(a)
}

func TestFileInsertReadDelete(t *testing.T) {
	dir := t.TempDir()
	a, oc := newTestAdapter(t, dir)

	u := records.NewUser(types.NewObjectID())
	u.Name = "mira"
	u.Email = "mira@example.com"

	require.True(t, a.SubmitInsert(1, u))
	require.True(t, oc.wait(t, 1, time.Second).Success)

	require.True(t, a.SubmitRead(2, types.ByID, u.ObjectID()))
	out := oc.wait(t, 2, time.Second)
	require.True(t, out.Success)
	got, ok := out.Record.(*records.User)
	require.True(t, ok)
	assert.Equal(t, "mira", got.Name)

	require.True(t, a.SubmitDelete(3, u.ObjectID()))
	require.True(t, oc.wait(t, 3, time.Second).Success)

	require.True(t, a.SubmitRead(4, types.ByID, u.ObjectID()))
	out = oc.wait(t, 4, time.Second)
	assert.False(t, out.Success)
	assert.Equal(t, types.ReasonNotFound, out.Reason)
}

func TestFileInsertDuplicateFails(t *testing.T) {
	a, oc := newTestAdapter(t, t.TempDir())

	u := records.NewUser(types.NewObjectID())
	require.True(t, a.SubmitInsert(1, u))
	require.True(t, oc.wait(t, 1, time.Second).Success)

	require.True(t, a.SubmitInsert(2, u))
	out := oc.wait(t, 2, time.Second)
	assert.False(t, out.Success)
	assert.Equal(t, types.ReasonAlreadyExists, out.Reason)
}

func TestFilePersistsAcrossReconnect(t *testing.T) {
	dir := t.TempDir()
	a, oc := newTestAdapter(t, dir)

	u := records.NewUser(types.NewObjectID())
	u.Name = "kept"
	require.True(t, a.SubmitInsert(1, u))
	require.True(t, oc.wait(t, 1, time.Second).Success)

	// A fresh adapter over the same directory sees the committed record.
	b, oc2 := newTestAdapter(t, dir)
	require.True(t, b.SubmitRead(2, types.ByID, u.ObjectID()))
	out := oc2.wait(t, 2, time.Second)
	require.True(t, out.Success)
	assert.Equal(t, "kept", out.Record.(*records.User).Name)

	// The backing file itself is line-delimited JSON.
	data, err := os.ReadFile(dir + "/user.jsonl")
	require.NoError(t, err)
	assert.Contains(t, string(data), u.ObjectID().String())
}

func TestFileReadAllReturnsBatch(t *testing.T) {
	a, oc := newTestAdapter(t, t.TempDir())

	for i := 0; i < 3; i++ {
		u := records.NewUser(types.NewObjectID())
		req := types.RequestID(10 + i)
		require.True(t, a.SubmitInsert(req, u))
		require.True(t, oc.wait(t, req, time.Second).Success)
	}

	require.True(t, a.SubmitRead(20, types.All, nil))
	out := oc.wait(t, 20, time.Second)
	require.True(t, out.Success)
	batch, ok := types.AsBatch(out.Record)
	require.True(t, ok)
	assert.Len(t, batch.Items, 3)
}

func TestFileRejectsWhenDisconnected(t *testing.T) {
	a, _ := newTestAdapter(t, t.TempDir())
	a.Disconnect()
	assert.False(t, a.SubmitRead(1, types.All, nil))
}
