package storage

import (
	"context"
	"errors"
	"time"

	"schedbot/internal/domain"
)

// ErrNotFound is returned when an operation names an unknown schedule id.
var ErrNotFound = errors.New("schedule not found")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//
// If Driver is empty, sqlite is assumed.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// ScheduleUpdate carries the editable fields of a schedule. Nil/empty fields
// keep the stored value.
type ScheduleUpdate struct {
	Message *string
	Days    []string
	Time    *string
}

// AuditEntry records a schedule mutation or a dispatch outcome.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At         time.Time
	ActorID    int64 // 0 for the dispatch loop
	Action     string
	ScheduleID int64
	OK         int
	Fail       int
	Error      string
	TookMS     int64
}

// Store is the persistence API used by the wizard, the commands and the
// dispatch loop. Writes to the same row are serialized by the backend.
type Store interface {
	CreateSchedule(ctx context.Context, s *domain.Schedule) (int64, error)
	GetSchedule(ctx context.Context, id int64) (*domain.Schedule, error)
	ListSchedules(ctx context.Context) ([]domain.Schedule, error)
	UpdateSchedule(ctx context.Context, id int64, upd ScheduleUpdate) error
	DeleteSchedule(ctx context.Context, id int64) error

	// SetLastSent records the calendar date ("YYYY-MM-DD") a schedule last
	// fired. The marker never moves backwards.
	SetLastSent(ctx context.Context, id int64, date string) error

	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}
