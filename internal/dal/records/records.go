// Package records holds the per-entity-kind record structs: device, user,
// session, schedule, sync-job, log, statistic and system-setting. The
// storage-access core never inspects their fields, so this package is
// intentionally thin: one struct per kind, each satisfying types.Record.
package records

import "syncdal/internal/dal/types"

// base implements the id/kind/modified bookkeeping every record shares.
type base struct {
	id       types.ObjectID
	kind     types.Kind
	modified bool
}

func (b *base) ObjectID() types.ObjectID { return b.id }
func (b *base) Kind() types.Kind         { return b.kind }
func (b *base) Modified() bool           { return b.modified }
func (b *base) SetModified(m bool)       { b.modified = m }

// Device is a synced client device.
type Device struct {
	base
	Name         string
	OwnerID      types.ObjectID
	Platform     string
	LastSeenUnix int64
}

func NewDevice(id types.ObjectID) *Device {
	return &Device{base: base{id: id, kind: types.KindDevice}}
}
func (d *Device) Clone() types.Record { c := *d; return &c }

// User is an account record.
type User struct {
	base
	Name  string
	Email string
}

func NewUser(id types.ObjectID) *User {
	return &User{base: base{id: id, kind: types.KindUser}}
}
func (u *User) Clone() types.Record { c := *u; return &c }

// Session is a login session bound to a user and device.
type Session struct {
	base
	UserID      types.ObjectID
	DeviceID    types.ObjectID
	IssuedUnix  int64
	ExpiresUnix int64
}

func NewSession(id types.ObjectID) *Session {
	return &Session{base: base{id: id, kind: types.KindSession}}
}
func (s *Session) Clone() types.Record { c := *s; return &c }

// Schedule is a recurring sync schedule owned by a user.
type Schedule struct {
	base
	OwnerID  types.ObjectID
	CronExpr string
	Enabled  bool
}

func NewSchedule(id types.ObjectID) *Schedule {
	return &Schedule{base: base{id: id, kind: types.KindSchedule}}
}
func (s *Schedule) Clone() types.Record { c := *s; return &c }

// SyncJob is one run (pending/running/done/failed) of a schedule.
type SyncJob struct {
	base
	ScheduleID types.ObjectID
	DeviceID   types.ObjectID
	Status     string
	StartUnix  int64
	EndUnix    int64
}

func NewSyncJob(id types.ObjectID) *SyncJob {
	return &SyncJob{base: base{id: id, kind: types.KindSyncJob}}
}
func (j *SyncJob) Clone() types.Record { c := *j; return &c }

// LogEntry is one event-log line.
type LogEntry struct {
	base
	Source    string
	Message   string
	Level     string
	EmittedAt int64
}

func NewLogEntry(id types.ObjectID) *LogEntry {
	return &LogEntry{base: base{id: id, kind: types.KindLog}}
}
func (l *LogEntry) Clone() types.Record { c := *l; return &c }

// Statistic is one named counter/gauge sample.
type Statistic struct {
	base
	OwnerID types.ObjectID
	Name    string
	Value   float64
}

func NewStatistic(id types.ObjectID) *Statistic {
	return &Statistic{base: base{id: id, kind: types.KindStatistic}}
}
func (s *Statistic) Clone() types.Record { c := *s; return &c }

// SystemSetting is one server-wide configuration key/value pair.
type SystemSetting struct {
	base
	Key   string
	Value string
}

func NewSystemSetting(id types.ObjectID) *SystemSetting {
	return &SystemSetting{base: base{id: id, kind: types.KindSystemSetting}}
}
func (s *SystemSetting) Clone() types.Record { c := *s; return &c }
