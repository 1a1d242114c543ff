package records

import (
	"fmt"

	"syncdal/internal/dal/types"
)

// Wire is the flat serialized form of a record shared by the file, DynamoDB
// and Supabase adapters. One struct covers every kind; fields that do not
// apply to a kind stay zero and are omitted on the wire. Owner carries the
// record's by-owner query key regardless of which struct field it came
// from (a session's user, a sync job's schedule).
type Wire struct {
	ObjectID string  `json:"object_id" dynamodbav:"object_id"`
	Kind     string  `json:"kind" dynamodbav:"kind"`
	Owner    string  `json:"owner,omitempty" dynamodbav:"owner,omitempty"`
	Name     string  `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Email    string  `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Platform string  `json:"platform,omitempty" dynamodbav:"platform,omitempty"`
	DeviceID string  `json:"device_id,omitempty" dynamodbav:"device_id,omitempty"`
	CronExpr string  `json:"cron_expr,omitempty" dynamodbav:"cron_expr,omitempty"`
	Enabled  bool    `json:"enabled,omitempty" dynamodbav:"enabled,omitempty"`
	Status   string  `json:"status,omitempty" dynamodbav:"status,omitempty"`
	Source   string  `json:"source,omitempty" dynamodbav:"source,omitempty"`
	Message  string  `json:"message,omitempty" dynamodbav:"message,omitempty"`
	Level    string  `json:"level,omitempty" dynamodbav:"level,omitempty"`
	Key      string  `json:"key,omitempty" dynamodbav:"key,omitempty"`
	Value    string  `json:"value,omitempty" dynamodbav:"value,omitempty"`
	Number   float64 `json:"number,omitempty" dynamodbav:"number,omitempty"`
	TimeA    int64   `json:"time_a,omitempty" dynamodbav:"time_a,omitempty"`
	TimeB    int64   `json:"time_b,omitempty" dynamodbav:"time_b,omitempty"`
}

// ToWire flattens rec for persistence. Batch records never cross an adapter
// boundary on the write path and are rejected.
func ToWire(rec types.Record) (Wire, error) {
	w := Wire{ObjectID: rec.ObjectID().String(), Kind: string(rec.Kind())}
	switch r := rec.(type) {
	case *Device:
		w.Owner = r.OwnerID.String()
		w.Name = r.Name
		w.Platform = r.Platform
		w.TimeA = r.LastSeenUnix
	case *User:
		w.Name = r.Name
		w.Email = r.Email
	case *Session:
		w.Owner = r.UserID.String()
		w.DeviceID = r.DeviceID.String()
		w.TimeA = r.IssuedUnix
		w.TimeB = r.ExpiresUnix
	case *Schedule:
		w.Owner = r.OwnerID.String()
		w.CronExpr = r.CronExpr
		w.Enabled = r.Enabled
	case *SyncJob:
		w.Owner = r.ScheduleID.String()
		w.DeviceID = r.DeviceID.String()
		w.Status = r.Status
		w.TimeA = r.StartUnix
		w.TimeB = r.EndUnix
	case *LogEntry:
		w.Source = r.Source
		w.Message = r.Message
		w.Level = r.Level
		w.TimeA = r.EmittedAt
	case *Statistic:
		w.Owner = r.OwnerID.String()
		w.Name = r.Name
		w.Number = r.Value
	case *SystemSetting:
		w.Key = r.Key
		w.Value = r.Value
	default:
		return Wire{}, fmt.Errorf("records: cannot serialize kind %q", rec.Kind())
	}
	return w, nil
}

// FromWire rebuilds the concrete record a Wire was flattened from.
func FromWire(w Wire) (types.Record, error) {
	id, err := types.ParseObjectID(w.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("records: bad object_id %q: %w", w.ObjectID, err)
	}
	owner, _ := types.ParseObjectID(w.Owner)
	device, _ := types.ParseObjectID(w.DeviceID)

	switch types.Kind(w.Kind) {
	case types.KindDevice:
		r := NewDevice(id)
		r.OwnerID = owner
		r.Name = w.Name
		r.Platform = w.Platform
		r.LastSeenUnix = w.TimeA
		return r, nil
	case types.KindUser:
		r := NewUser(id)
		r.Name = w.Name
		r.Email = w.Email
		return r, nil
	case types.KindSession:
		r := NewSession(id)
		r.UserID = owner
		r.DeviceID = device
		r.IssuedUnix = w.TimeA
		r.ExpiresUnix = w.TimeB
		return r, nil
	case types.KindSchedule:
		r := NewSchedule(id)
		r.OwnerID = owner
		r.CronExpr = w.CronExpr
		r.Enabled = w.Enabled
		return r, nil
	case types.KindSyncJob:
		r := NewSyncJob(id)
		r.ScheduleID = owner
		r.DeviceID = device
		r.Status = w.Status
		r.StartUnix = w.TimeA
		r.EndUnix = w.TimeB
		return r, nil
	case types.KindLog:
		r := NewLogEntry(id)
		r.Source = w.Source
		r.Message = w.Message
		r.Level = w.Level
		r.EmittedAt = w.TimeA
		return r, nil
	case types.KindStatistic:
		r := NewStatistic(id)
		r.OwnerID = owner
		r.Name = w.Name
		r.Value = w.Number
		return r, nil
	case types.KindSystemSetting:
		r := NewSystemSetting(id)
		r.Key = w.Key
		r.Value = w.Value
		return r, nil
	default:
		return nil, fmt.Errorf("records: unknown kind %q", w.Kind)
	}
}
