package manager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdal/internal/dal/adapters/memory"
	"syncdal/internal/dal/records"
	"syncdal/internal/dal/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := New(nil, nil)
	t.Cleanup(m.Stop)
	return m
}

func TestManager_InsertThenGetDevice(t *testing.T) {
	m := newTestManager(t)
	_, err := m.AttachAdapter(types.KindDevice, memory.New(types.KindDevice), false)
	require.NoError(t, err)

	dev := records.NewDevice(types.NewObjectID())
	dev.Name = "tablet"

	out := m.CreateDevice(dev)
	require.True(t, out.Success)

	out = m.GetDevice(dev.ObjectID())
	require.True(t, out.Success)
	got := out.Record.(*records.Device)
	assert.Equal(t, "tablet", got.Name)
}

func TestManager_DeleteThenGetFails(t *testing.T) {
	m := newTestManager(t)
	_, err := m.AttachAdapter(types.KindUser, memory.New(types.KindUser), false)
	require.NoError(t, err)

	u := records.NewUser(types.NewObjectID())
	require.True(t, m.CreateUser(u).Success)
	require.True(t, m.DeleteUser(u.ObjectID()).Success)

	out := m.GetUser(u.ObjectID())
	assert.False(t, out.Success)
	assert.Equal(t, types.ReasonNotFound, out.Reason)
}

func TestManager_UnknownKindFails(t *testing.T) {
	m := newTestManager(t)
	_, err := m.AttachAdapter(types.Kind("not-a-kind"), memory.New(types.KindDevice), false)
	assert.Error(t, err)
}

func TestManager_WaitsForAdapterUntilTimeout(t *testing.T) {
	m := newTestManager(t)
	m.SetCallTimeout(50 * time.Millisecond)

	// With no adapter attached the intake parks in the queue; the caller
	// wrapper gives up at its timeout rather than seeing a routing failure.
	out := m.GetSession(types.NewObjectID())
	assert.False(t, out.Success)
	assert.Equal(t, types.ReasonTimeout, out.Reason)
}

func TestManager_WithCacheRoundTrip(t *testing.T) {
	m := newTestManager(t)
	_, err := m.AttachAdapter(types.KindSchedule, memory.New(types.KindSchedule), true)
	require.NoError(t, err)

	sched := records.NewSchedule(types.NewObjectID())
	sched.CronExpr = "*/5 * * * *"
	require.True(t, m.CreateSchedule(sched).Success)

	out := m.GetSchedule(sched.ObjectID())
	require.True(t, out.Success)
	got := out.Record.(*records.Schedule)
	assert.Equal(t, "*/5 * * * *", got.CronExpr)

	infos := m.GetCachesInfo(types.KindSchedule)
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].PendingMutations)
}

func TestManager_CallTimesOutWhenAdapterNeverCompletes(t *testing.T) {
	m := newTestManager(t)
	slow := memory.New(types.KindLog)
	slow.NeverComplete = true
	_, err := m.AttachAdapter(types.KindLog, slow, false)
	require.NoError(t, err)
	m.SetCallTimeout(50 * time.Millisecond)

	out := m.CreateLogEntry(records.NewLogEntry(types.NewObjectID()))
	assert.False(t, out.Success)
	assert.Equal(t, types.ReasonTimeout, out.Reason)
}

func TestManager_DetachAdapterStopsRoutingToIt(t *testing.T) {
	m := newTestManager(t)
	id, err := m.AttachAdapter(types.KindDevice, memory.New(types.KindDevice), false)
	require.NoError(t, err)
	require.True(t, m.DetachAdapter(types.KindDevice, id))

	// The queue parks intakes while its adapter list is empty, so the call
	// runs into the wrapper timeout instead of reaching the detached adapter.
	m.SetCallTimeout(50 * time.Millisecond)
	out := m.CreateDevice(records.NewDevice(types.NewObjectID()))
	assert.False(t, out.Success)
	assert.Equal(t, types.ReasonTimeout, out.Reason)
}
