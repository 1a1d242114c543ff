package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/records"
	"syncdal/internal/dal/types"
)

func TestAdapter_InsertThenReadByID(t *testing.T) {
	a := New(types.KindDevice)

	var mu sync.Mutex
	successes := map[types.RequestID]types.Record{}
	failures := map[types.RequestID]types.FailureReason{}
	done := make(chan struct{}, 4)
	a.AttachOnSuccess(func(_ adapter.AdapterID, req types.RequestID, rec types.Record) {
		mu.Lock()
		successes[req] = rec
		mu.Unlock()
		done <- struct{}{}
	})
	a.AttachOnFailure(func(_ adapter.AdapterID, req types.RequestID, _ types.ObjectID, reason types.FailureReason) {
		mu.Lock()
		failures[req] = reason
		mu.Unlock()
		done <- struct{}{}
	})

	dev := records.NewDevice(types.NewObjectID())
	dev.Name = "phone"

	require.True(t, a.SubmitInsert(1, dev))
	<-done

	require.True(t, a.SubmitRead(2, types.ByID, dev.ObjectID()))
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, successes, types.RequestID(1))
	require.Contains(t, successes, types.RequestID(2))
	got := successes[types.RequestID(2)].(*records.Device)
	assert.Equal(t, "phone", got.Name)
	assert.Empty(t, failures)
}

func TestAdapter_DoubleInsertFails(t *testing.T) {
	a := New(types.KindUser)
	done := make(chan types.FailureReason, 1)
	a.AttachOnFailure(func(_ adapter.AdapterID, _ types.RequestID, _ types.ObjectID, reason types.FailureReason) {
		done <- reason
	})
	a.AttachOnSuccess(func(_ adapter.AdapterID, _ types.RequestID, _ types.Record) {})

	u := records.NewUser(types.NewObjectID())
	require.True(t, a.SubmitInsert(1, u))
	time.Sleep(10 * time.Millisecond)
	require.True(t, a.SubmitInsert(2, u))

	select {
	case reason := <-done:
		assert.Equal(t, types.ReasonAlreadyExists, reason)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for failure completion")
	}
}

func TestAdapter_DeleteMissingFails(t *testing.T) {
	a := New(types.KindSession)
	done := make(chan types.FailureReason, 1)
	a.AttachOnFailure(func(_ adapter.AdapterID, _ types.RequestID, _ types.ObjectID, reason types.FailureReason) {
		done <- reason
	})
	require.True(t, a.SubmitDelete(1, types.NewObjectID()))
	select {
	case reason := <-done:
		assert.Equal(t, types.ReasonNotFound, reason)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for failure completion")
	}
}

func TestAdapter_RejectNext(t *testing.T) {
	a := New(types.KindDevice)
	a.RejectNext = true
	accepted := a.SubmitInsert(1, records.NewDevice(types.NewObjectID()))
	assert.False(t, accepted)
}
