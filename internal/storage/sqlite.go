package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"schedbot/internal/domain"
	"schedbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers. A single
	// connection also serializes same-row writes from the wizard and the
	// dispatch loop.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) CreateSchedule(ctx context.Context, sc *domain.Schedule) (int64, error) {
	if sc == nil {
		return 0, errors.New("nil schedule")
	}
	if err := sc.Validate(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules(target, target_ids, message, days, time)
		 VALUES(?,?,?,?,?)`,
		string(sc.Target), domain.JoinList(sc.TargetIDs), sc.Message,
		domain.JoinList(sc.Days), sc.Time,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	sc.ID = id
	return id, nil
}

const scheduleCols = `id, target, target_ids, message, days, time, last_sent`

func scanSchedule(row interface{ Scan(...any) error }) (*domain.Schedule, error) {
	var (
		sc       domain.Schedule
		target   string
		ids      string
		days     string
		lastSent sql.NullString
	)
	if err := row.Scan(&sc.ID, &target, &ids, &sc.Message, &days, &sc.Time, &lastSent); err != nil {
		return nil, err
	}
	kind, err := domain.ParseTargetKind(target)
	if err != nil {
		return nil, err
	}
	sc.Target = kind
	sc.TargetIDs = domain.SplitList(ids)
	sc.Days = domain.SplitList(days)
	if lastSent.Valid {
		sc.LastSent = lastSent.String
	}
	return &sc, nil
}

func (s *sqliteStore) GetSchedule(ctx context.Context, id int64) (*domain.Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduleCols+` FROM schedules WHERE id = ?`, id)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *sqliteStore) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scheduleCols+` FROM schedules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

func (s *sqliteStore) UpdateSchedule(ctx context.Context, id int64, upd ScheduleUpdate) error {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if upd.Message != nil {
		if strings.TrimSpace(*upd.Message) == "" {
			return domain.ErrEmptyMessage
		}
		sets = append(sets, "message = ?")
		args = append(args, *upd.Message)
	}
	if upd.Days != nil {
		for _, d := range upd.Days {
			if !domain.IsWeekday(d) {
				return fmt.Errorf("%w: %q", domain.ErrBadDay, d)
			}
		}
		if len(upd.Days) == 0 {
			return domain.ErrNoDays
		}
		sets = append(sets, "days = ?")
		args = append(args, domain.JoinList(upd.Days))
	}
	if upd.Time != nil {
		if err := domain.ValidateTime(*upd.Time); err != nil {
			return err
		}
		sets = append(sets, "time = ?")
		args = append(args, *upd.Time)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *sqliteStore) DeleteSchedule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *sqliteStore) SetLastSent(ctx context.Context, id int64, date string) error {
	// The guard keeps the marker monotonic: a stale writer can never move
	// last_sent backwards.
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET last_sent = ?
		 WHERE id = ? AND (last_sent IS NULL OR last_sent <= ?)`,
		date, id, date,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the id is unknown or an equal/newer marker is already set.
		if _, err := s.GetSchedule(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor_id, action, schedule_id, ok, fail, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.ActorID, e.Action, e.ScheduleID,
		e.OK, e.Fail, nullStr(e.Error), e.TookMS,
	)
	return err
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
