package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"schedbot/internal/session"
	"schedbot/internal/storage"
	kit "schedbot/internal/transport"
	"schedbot/pkg/logx"
)

// cbScope tags every inline-callback this bot emits.
const cbScope = "sched"

type Config struct {
	// OwnerUserIDs optionally restricts commands to these users.
	// Empty means everyone.
	OwnerUserIDs []int64
}

// Bot routes interaction updates: commands start or shortcut the wizard,
// callbacks and free text advance it one step per event.
type Bot struct {
	adapter  kit.Adapter
	store    storage.Store
	sessions *session.Registry
	log      logx.Logger

	mu     sync.RWMutex
	owners []int64
}

func New(cfg Config, adapter kit.Adapter, store storage.Store, sessions *session.Registry, log logx.Logger) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Bot{
		adapter:  adapter,
		store:    store,
		sessions: sessions,
		log:      log,
		owners:   cfg.OwnerUserIDs,
	}
}

// SetOwners swaps the allow list on config hot-reload.
func (b *Bot) SetOwners(ids []int64) {
	b.mu.Lock()
	b.owners = ids
	b.mu.Unlock()
}

// HandleUpdate processes one interaction event. Errors are reported to the
// user and logged; nothing here is fatal to the update pump.
func (b *Bot) HandleUpdate(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message == nil {
			return
		}
		b.handleMessage(ctx, up.Message)
	case kit.UpdateCallback:
		if up.Callback == nil {
			return
		}
		b.handleCallback(ctx, up.Callback)
	}
}

func (b *Bot) allowed(userID int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.owners) == 0 {
		return true
	}
	for _, id := range b.owners {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *Bot) handleMessage(ctx context.Context, m *kit.Message) {
	text := strings.TrimSpace(m.Text)
	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, m, text)
		return
	}

	// Free text only means something while a wizard step is waiting for it.
	s, ok := b.sessions.Get(m.FromID)
	if !ok {
		return
	}
	b.handleStepInput(ctx, m.ChatID, s, text)
}

func (b *Bot) handleCommand(ctx context.Context, m *kit.Message, text string) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	// Strip the @botname suffix used in groups.
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	if !b.allowed(m.FromID) {
		b.reply(ctx, m.ChatID, textNotAllowed)
		return
	}

	switch cmd {
	case "/start", "/help":
		b.reply(ctx, m.ChatID, textHelp)
	case "/ping":
		b.reply(ctx, m.ChatID, textPong)
	case "/create":
		b.cmdCreate(ctx, m)
	case "/list":
		b.cmdList(ctx, m.ChatID)
	case "/delete":
		b.cmdDelete(ctx, m, args)
	case "/edit":
		b.cmdEdit(ctx, m, args)
	case "/cancel":
		b.cmdCancel(ctx, m)
	default:
		b.reply(ctx, m.ChatID, textUnknownCommand)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, nil); err != nil {
		b.log.Warn("reply failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}

func (b *Bot) audit(ctx context.Context, actorID int64, action string, scheduleID int64) {
	err := b.store.AppendAudit(ctx, storage.AuditEntry{
		ActorID:    actorID,
		Action:     action,
		ScheduleID: scheduleID,
	})
	if err != nil {
		b.log.Warn("audit append failed", logx.String("action", action), logx.Err(err))
	}
}

func parseID(args []string) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
