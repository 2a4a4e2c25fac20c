package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"schedbot/internal/domain"
	"schedbot/internal/session"
	"schedbot/internal/storage"
	kit "schedbot/internal/transport"
	"schedbot/pkg/logx"
)

// fakeAdapter records outgoing traffic instead of talking to Telegram.
type fakeAdapter struct {
	mu      sync.Mutex
	sent    []string
	edits   []string
	answers []string
	nextID  int
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.nextID++
	return kit.MessageRef{ChatID: to.ChatID, MessageID: f.nextID}, nil
}

func (f *fakeAdapter) EditText(_ context.Context, _ kit.MessageRef, text string, _ *kit.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeAdapter) lastSent(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

// memStore validates on create like the real backend does.
type memStore struct {
	mu        sync.Mutex
	schedules map[int64]*domain.Schedule
	audits    []storage.AuditEntry
	nextID    int64
}

func newMemStore(schedules ...*domain.Schedule) *memStore {
	m := &memStore{schedules: map[int64]*domain.Schedule{}}
	for _, s := range schedules {
		m.schedules[s.ID] = s
		if s.ID > m.nextID {
			m.nextID = s.ID
		}
	}
	return m
}

func (m *memStore) CreateSchedule(_ context.Context, s *domain.Schedule) (int64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	cp := *s
	m.schedules[s.ID] = &cp
	return s.ID, nil
}

func (m *memStore) GetSchedule(_ context.Context, id int64) (*domain.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListSchedules(context.Context) ([]domain.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Schedule
	for _, s := range m.schedules {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) UpdateSchedule(_ context.Context, id int64, upd storage.ScheduleUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return storage.ErrNotFound
	}
	if upd.Message != nil {
		s.Message = *upd.Message
	}
	if upd.Days != nil {
		s.Days = upd.Days
	}
	if upd.Time != nil {
		s.Time = *upd.Time
	}
	return nil
}

func (m *memStore) DeleteSchedule(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

func (m *memStore) SetLastSent(_ context.Context, id int64, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.LastSent = date
	return nil
}

func (m *memStore) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, e)
	return nil
}

func (m *memStore) Close() error { return nil }

const (
	testUser int64 = 42
	testChat int64 = 42
)

func newTestBot(st storage.Store) (*Bot, *fakeAdapter, *session.Registry) {
	ad := &fakeAdapter{}
	reg := session.NewRegistry(time.Minute, time.Minute, logx.Nop())
	b := New(Config{}, ad, st, reg, logx.Nop())
	return b, ad, reg
}

func msg(text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ChatID: testChat,
		FromID: testUser,
		Text:   text,
	}}
}

func cb(data string) kit.Update {
	return kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{
		ID:        "cb",
		FromID:    testUser,
		ChatID:    testChat,
		MessageID: 7,
		Data:      data,
	}}
}

func TestWizardFullRoundTrip(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	b, ad, reg := newTestBot(st)
	ctx := context.Background()

	b.HandleUpdate(ctx, msg("/create"))
	require.Equal(t, textAskTarget, ad.lastSent(t))

	b.HandleUpdate(ctx, cb("sched:target:CHANNEL"))
	require.Equal(t, textAskRecipientChannel, ad.lastSent(t))

	// Non-numeric recipients re-prompt without advancing.
	b.HandleUpdate(ctx, msg("not-a-number"))
	require.Equal(t, textBadRecipients, ad.lastSent(t))
	s, ok := reg.Get(testUser)
	require.True(t, ok)
	require.Equal(t, session.StepRecipients, s.Step)

	b.HandleUpdate(ctx, msg("123"))
	require.Equal(t, textAskMessage, ad.lastSent(t))

	b.HandleUpdate(ctx, msg("hi"))
	require.Equal(t, textAskDays, ad.lastSent(t))

	b.HandleUpdate(ctx, cb("sched:day:MON"))
	b.HandleUpdate(ctx, cb("sched:day:WED"))
	b.HandleUpdate(ctx, cb("sched:done"))
	require.Equal(t, textAskTime, ad.lastSent(t))

	// Bad time keeps the session on the time step.
	b.HandleUpdate(ctx, msg("9:99"))
	require.Equal(t, textBadTime, ad.lastSent(t))
	s, ok = reg.Get(testUser)
	require.True(t, ok)
	require.Equal(t, session.StepTime, s.Step)

	b.HandleUpdate(ctx, msg("09:00"))
	require.Contains(t, ad.lastSent(t), "created")

	_, ok = reg.Get(testUser)
	require.False(t, ok, "session should be gone after completion")

	got, err := st.GetSchedule(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, domain.TargetChannel, got.Target)
	require.Equal(t, []string{"123"}, got.TargetIDs)
	require.Equal(t, "hi", got.Message)
	require.Equal(t, []string{"MON", "WED"}, got.Days)
	require.Equal(t, "09:00", got.Time)
	require.Empty(t, got.LastSent)

	require.Len(t, st.audits, 1)
	require.Equal(t, "create", st.audits[0].Action)
	require.Equal(t, testUser, st.audits[0].ActorID)
}

func TestDayToggleRedrawsKeyboard(t *testing.T) {
	t.Parallel()
	b, ad, reg := newTestBot(newMemStore())
	ctx := context.Background()

	b.HandleUpdate(ctx, msg("/create"))
	b.HandleUpdate(ctx, cb("sched:target:DIRECT"))
	b.HandleUpdate(ctx, msg("10 11"))
	b.HandleUpdate(ctx, msg("standup"))

	b.HandleUpdate(ctx, cb("sched:day:FRI"))
	s, _ := reg.Get(testUser)
	require.Equal(t, []string{"FRI"}, s.Days)
	require.NotEmpty(t, ad.edits, "toggle should redraw the day prompt")
	require.Equal(t, "Days: FRI", ad.answers[len(ad.answers)-1])

	// Toggling again removes the day.
	b.HandleUpdate(ctx, cb("sched:day:FRI"))
	s, _ = reg.Get(testUser)
	require.Empty(t, s.Days)
}

func TestCreateWithNoDaysFailsAtCommit(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	b, ad, reg := newTestBot(st)
	ctx := context.Background()

	b.HandleUpdate(ctx, msg("/create"))
	b.HandleUpdate(ctx, cb("sched:target:DIRECT"))
	b.HandleUpdate(ctx, msg("10"))
	b.HandleUpdate(ctx, msg("hi"))
	b.HandleUpdate(ctx, cb("sched:done"))
	b.HandleUpdate(ctx, msg("09:00"))

	require.Contains(t, ad.lastSent(t), "Could not save")
	_, ok := reg.Get(testUser)
	require.False(t, ok)
	require.Empty(t, st.schedules)
}

func TestCancelCommand(t *testing.T) {
	t.Parallel()
	b, ad, reg := newTestBot(newMemStore())
	ctx := context.Background()

	b.HandleUpdate(ctx, msg("/cancel"))
	require.Equal(t, textNoSession, ad.lastSent(t))

	b.HandleUpdate(ctx, msg("/create"))
	b.HandleUpdate(ctx, msg("/cancel"))
	require.Equal(t, textCanceled, ad.lastSent(t))
	_, ok := reg.Get(testUser)
	require.False(t, ok)
}

func TestListAndDelete(t *testing.T) {
	t.Parallel()
	st := newMemStore(&domain.Schedule{
		ID:        3,
		Target:    domain.TargetDirect,
		TargetIDs: []string{"10", "11"},
		Message:   "standup",
		Days:      []string{"MON", "WED"},
		Time:      "09:00",
	})
	b, ad, _ := newTestBot(st)
	ctx := context.Background()

	b.HandleUpdate(ctx, msg("/list"))
	listing := ad.lastSent(t)
	require.Contains(t, listing, "#3")
	require.Contains(t, listing, "DM to 10,11")
	require.Contains(t, listing, "MON,WED at 09:00")
	require.Contains(t, listing, "never")

	b.HandleUpdate(ctx, msg("/delete 99"))
	require.Contains(t, ad.lastSent(t), "not found")

	b.HandleUpdate(ctx, msg("/delete 3"))
	require.Contains(t, ad.lastSent(t), "deleted")

	b.HandleUpdate(ctx, msg("/list"))
	require.Equal(t, textNoSchedules, ad.lastSent(t))
}

func TestEditForm(t *testing.T) {
	t.Parallel()
	st := newMemStore(&domain.Schedule{
		ID:        1,
		Target:    domain.TargetDirect,
		TargetIDs: []string{"10"},
		Message:   "old text",
		Days:      []string{"MON"},
		Time:      "09:00",
	})
	b, ad, reg := newTestBot(st)
	ctx := context.Background()

	b.HandleUpdate(ctx, msg("/edit 1"))
	require.Contains(t, ad.lastSent(t), "old text")
	s, ok := reg.Get(testUser)
	require.True(t, ok)
	require.Equal(t, session.StepEditForm, s.Step)
	require.Equal(t, int64(1), s.EditID)

	// Bad day line re-prompts without committing.
	b.HandleUpdate(ctx, msg("new text\nMOONDAY\n-"))
	require.Contains(t, ad.lastSent(t), "Days must be codes")
	got, _ := st.GetSchedule(ctx, 1)
	require.Equal(t, "old text", got.Message)

	b.HandleUpdate(ctx, msg("new text\n-\n18:30"))
	require.Contains(t, ad.lastSent(t), "updated")

	got, _ = st.GetSchedule(ctx, 1)
	require.Equal(t, "new text", got.Message)
	require.Equal(t, []string{"MON"}, got.Days, "dash keeps the stored days")
	require.Equal(t, "18:30", got.Time)

	require.Len(t, st.audits, 1)
	require.Equal(t, "update", st.audits[0].Action)
}

func TestEditMissingSchedule(t *testing.T) {
	t.Parallel()
	b, ad, _ := newTestBot(newMemStore())
	b.HandleUpdate(context.Background(), msg("/edit 5"))
	require.Contains(t, ad.lastSent(t), "not found")
}

func TestOwnerGate(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	reg := session.NewRegistry(time.Minute, time.Minute, logx.Nop())
	b := New(Config{OwnerUserIDs: []int64{99}}, ad, newMemStore(), reg, logx.Nop())
	ctx := context.Background()

	b.HandleUpdate(ctx, msg("/create"))
	require.Equal(t, textNotAllowed, ad.lastSent(t))
	_, ok := reg.Get(testUser)
	require.False(t, ok)

	b.HandleUpdate(ctx, cb("sched:target:DIRECT"))
	require.Equal(t, textNotAllowed, ad.answers[len(ad.answers)-1])
}

func TestFreeTextWithoutSessionIsIgnored(t *testing.T) {
	t.Parallel()
	b, ad, _ := newTestBot(newMemStore())
	b.HandleUpdate(context.Background(), msg("hello there"))
	require.Empty(t, ad.sent)
}

func TestCommandWithBotSuffix(t *testing.T) {
	t.Parallel()
	b, ad, _ := newTestBot(newMemStore())
	b.HandleUpdate(context.Background(), msg("/ping@schedbot"))
	require.Equal(t, textPong, ad.lastSent(t))
}

func TestHelpListsCommands(t *testing.T) {
	t.Parallel()
	b, ad, _ := newTestBot(newMemStore())
	b.HandleUpdate(context.Background(), msg("/help"))
	for _, cmd := range []string{"/create", "/list", "/edit", "/delete", "/cancel"} {
		if !strings.Contains(ad.lastSent(t), cmd) {
			t.Fatalf("help misses %s", cmd)
		}
	}
}
