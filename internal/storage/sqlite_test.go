package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"schedbot/internal/domain"
	"schedbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "schedbot.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func channelSchedule() *domain.Schedule {
	return &domain.Schedule{
		Target:    domain.TargetChannel,
		TargetIDs: []string{"123"},
		Message:   "hi",
		Days:      []string{"MON", "WED"},
		Time:      "09:00",
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.CreateSchedule(ctx, channelSchedule())
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := st.GetSchedule(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.TargetChannel, got.Target)
	require.Equal(t, []string{"123"}, got.TargetIDs)
	require.Equal(t, "hi", got.Message)
	require.Equal(t, []string{"MON", "WED"}, got.Days)
	require.Equal(t, "09:00", got.Time)
	require.Empty(t, got.LastSent, "new schedules have never been sent")
}

func TestCreateRejectsInvalid(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	sc := channelSchedule()
	sc.Days = nil
	_, err := st.CreateSchedule(ctx, sc)
	require.ErrorIs(t, err, domain.ErrNoDays)

	sc = channelSchedule()
	sc.Message = "  "
	_, err = st.CreateSchedule(ctx, sc)
	require.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestListSchedules(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	out, err := st.ListSchedules(ctx)
	require.NoError(t, err)
	require.Empty(t, out)

	_, err = st.CreateSchedule(ctx, channelSchedule())
	require.NoError(t, err)
	direct := channelSchedule()
	direct.Target = domain.TargetDirect
	direct.TargetIDs = []string{"10", "11"}
	_, err = st.CreateSchedule(ctx, direct)
	require.NoError(t, err)

	out, err = st.ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestUpdateSchedule(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.CreateSchedule(ctx, channelSchedule())
	require.NoError(t, err)

	msg := "new text"
	tm := "18:30"
	err = st.UpdateSchedule(ctx, id, ScheduleUpdate{Message: &msg, Time: &tm})
	require.NoError(t, err)

	got, err := st.GetSchedule(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "new text", got.Message)
	require.Equal(t, "18:30", got.Time)
	require.Equal(t, []string{"MON", "WED"}, got.Days, "untouched fields stay")

	bad := "25:99"
	err = st.UpdateSchedule(ctx, id, ScheduleUpdate{Time: &bad})
	require.ErrorIs(t, err, domain.ErrBadTime)

	err = st.UpdateSchedule(ctx, 999, ScheduleUpdate{Message: &msg})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSchedule(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	require.ErrorIs(t, st.DeleteSchedule(ctx, 5), ErrNotFound)

	id, err := st.CreateSchedule(ctx, channelSchedule())
	require.NoError(t, err)
	require.NoError(t, st.DeleteSchedule(ctx, id))

	_, err = st.GetSchedule(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetLastSentMonotonic(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.CreateSchedule(ctx, channelSchedule())
	require.NoError(t, err)

	require.NoError(t, st.SetLastSent(ctx, id, "2024-01-08"))
	got, err := st.GetSchedule(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "2024-01-08", got.LastSent)

	// A stale writer cannot move the marker backwards.
	require.NoError(t, st.SetLastSent(ctx, id, "2024-01-01"))
	got, err = st.GetSchedule(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "2024-01-08", got.LastSent)

	require.ErrorIs(t, st.SetLastSent(ctx, 999, "2024-01-08"), ErrNotFound)
}

func TestAppendAudit(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	require.NoError(t, st.AppendAudit(context.Background(), AuditEntry{
		ActorID:    42,
		Action:     "create",
		ScheduleID: 1,
	}))
}
