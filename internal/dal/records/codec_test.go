package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdal/internal/dal/types"
)

func TestWireRoundTripDevice(t *testing.T) {
	d := NewDevice(types.NewObjectID())
	d.Name = "laptop"
	d.OwnerID = types.NewObjectID()
	d.Platform = "linux"
	d.LastSeenUnix = 1722470400

	w, err := ToWire(d)
	require.NoError(t, err)
	assert.Equal(t, "device", w.Kind)
	assert.Equal(t, d.OwnerID.String(), w.Owner)

	back, err := FromWire(w)
	require.NoError(t, err)
	got, ok := back.(*Device)
	require.True(t, ok)
	assert.Equal(t, d.ObjectID(), got.ObjectID())
	assert.Equal(t, d.Name, got.Name)
	assert.Equal(t, d.OwnerID, got.OwnerID)
	assert.Equal(t, d.LastSeenUnix, got.LastSeenUnix)
}

func TestWireOwnerCarriesTheByOwnerKey(t *testing.T) {
	s := NewSession(types.NewObjectID())
	s.UserID = types.NewObjectID()
	s.DeviceID = types.NewObjectID()
	w, err := ToWire(s)
	require.NoError(t, err)
	assert.Equal(t, s.UserID.String(), w.Owner)

	j := NewSyncJob(types.NewObjectID())
	j.ScheduleID = types.NewObjectID()
	w, err = ToWire(j)
	require.NoError(t, err)
	assert.Equal(t, j.ScheduleID.String(), w.Owner)
}

func TestWireRejectsBatch(t *testing.T) {
	_, err := ToWire(&types.Batch{})
	assert.Error(t, err)
}

func TestFromWireRejectsUnknownKind(t *testing.T) {
	_, err := FromWire(Wire{ObjectID: types.NewObjectID().String(), Kind: "tape-drive"})
	assert.Error(t, err)
}
