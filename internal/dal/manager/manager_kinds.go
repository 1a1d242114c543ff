package manager

import (
	"syncdal/internal/dal/records"
	"syncdal/internal/dal/types"
)

// The methods below are pure adapters over the generic Insert/Update/
// Delete/Read* methods and carry no logic of their own — they exist only
// so callers work with concrete record types instead of the Kind+Record
// pair.

func (m *Manager) CreateDevice(d *records.Device) types.Outcome { return m.Insert(types.KindDevice, d) }
func (m *Manager) GetDevice(id types.ObjectID) types.Outcome {
	return m.ReadByID(types.KindDevice, id)
}
func (m *Manager) UpdateDevice(d *records.Device) types.Outcome { return m.Update(types.KindDevice, d) }
func (m *Manager) DeleteDevice(id types.ObjectID) types.Outcome {
	return m.Delete(types.KindDevice, id)
}
func (m *Manager) ListDevicesByOwner(ownerID types.ObjectID) types.Outcome {
	return m.ReadByOwner(types.KindDevice, ownerID)
}

func (m *Manager) CreateUser(u *records.User) types.Outcome { return m.Insert(types.KindUser, u) }
func (m *Manager) GetUser(id types.ObjectID) types.Outcome  { return m.ReadByID(types.KindUser, id) }
func (m *Manager) UpdateUser(u *records.User) types.Outcome { return m.Update(types.KindUser, u) }
func (m *Manager) DeleteUser(id types.ObjectID) types.Outcome {
	return m.Delete(types.KindUser, id)
}
func (m *Manager) GetUserByName(name string) types.Outcome {
	return m.ReadByName(types.KindUser, name)
}

func (m *Manager) CreateSession(s *records.Session) types.Outcome {
	return m.Insert(types.KindSession, s)
}
func (m *Manager) GetSession(id types.ObjectID) types.Outcome {
	return m.ReadByID(types.KindSession, id)
}
func (m *Manager) UpdateSession(s *records.Session) types.Outcome {
	return m.Update(types.KindSession, s)
}
func (m *Manager) DeleteSession(id types.ObjectID) types.Outcome {
	return m.Delete(types.KindSession, id)
}
func (m *Manager) ListSessionsByOwner(userID types.ObjectID) types.Outcome {
	return m.ReadByOwner(types.KindSession, userID)
}

func (m *Manager) CreateSchedule(s *records.Schedule) types.Outcome {
	return m.Insert(types.KindSchedule, s)
}
func (m *Manager) GetSchedule(id types.ObjectID) types.Outcome {
	return m.ReadByID(types.KindSchedule, id)
}
func (m *Manager) UpdateSchedule(s *records.Schedule) types.Outcome {
	return m.Update(types.KindSchedule, s)
}
func (m *Manager) DeleteSchedule(id types.ObjectID) types.Outcome {
	return m.Delete(types.KindSchedule, id)
}
func (m *Manager) ListSchedulesByOwner(ownerID types.ObjectID) types.Outcome {
	return m.ReadByOwner(types.KindSchedule, ownerID)
}

func (m *Manager) CreateSyncJob(j *records.SyncJob) types.Outcome {
	return m.Insert(types.KindSyncJob, j)
}
func (m *Manager) GetSyncJob(id types.ObjectID) types.Outcome {
	return m.ReadByID(types.KindSyncJob, id)
}
func (m *Manager) UpdateSyncJob(j *records.SyncJob) types.Outcome {
	return m.Update(types.KindSyncJob, j)
}
func (m *Manager) DeleteSyncJob(id types.ObjectID) types.Outcome {
	return m.Delete(types.KindSyncJob, id)
}
func (m *Manager) ListSyncJobsByOwner(scheduleID types.ObjectID) types.Outcome {
	return m.ReadByOwner(types.KindSyncJob, scheduleID)
}

func (m *Manager) CreateLogEntry(l *records.LogEntry) types.Outcome {
	return m.Insert(types.KindLog, l)
}
func (m *Manager) GetLogEntry(id types.ObjectID) types.Outcome {
	return m.ReadByID(types.KindLog, id)
}
func (m *Manager) DeleteLogEntry(id types.ObjectID) types.Outcome {
	return m.Delete(types.KindLog, id)
}
func (m *Manager) ListLogEntries() types.Outcome { return m.ReadAll(types.KindLog) }

func (m *Manager) CreateStatistic(s *records.Statistic) types.Outcome {
	return m.Insert(types.KindStatistic, s)
}
func (m *Manager) GetStatistic(id types.ObjectID) types.Outcome {
	return m.ReadByID(types.KindStatistic, id)
}
func (m *Manager) UpdateStatistic(s *records.Statistic) types.Outcome {
	return m.Update(types.KindStatistic, s)
}
func (m *Manager) DeleteStatistic(id types.ObjectID) types.Outcome {
	return m.Delete(types.KindStatistic, id)
}
func (m *Manager) ListStatisticsByOwner(ownerID types.ObjectID) types.Outcome {
	return m.ReadByOwner(types.KindStatistic, ownerID)
}

func (m *Manager) CreateSystemSetting(s *records.SystemSetting) types.Outcome {
	return m.Insert(types.KindSystemSetting, s)
}
func (m *Manager) GetSystemSetting(id types.ObjectID) types.Outcome {
	return m.ReadByID(types.KindSystemSetting, id)
}
func (m *Manager) UpdateSystemSetting(s *records.SystemSetting) types.Outcome {
	return m.Update(types.KindSystemSetting, s)
}
func (m *Manager) DeleteSystemSetting(id types.ObjectID) types.Outcome {
	return m.Delete(types.KindSystemSetting, id)
}
func (m *Manager) ListSystemSettings() types.Outcome { return m.ReadAll(types.KindSystemSetting) }
