package dispatch

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"schedbot/internal/domain"
	"schedbot/internal/storage"
	"schedbot/pkg/logx"
)

// Sink delivers a message to a direct recipient or a channel. Errors are
// per-call and non-fatal.
type Sink interface {
	SendDirect(ctx context.Context, recipientID string, text string) error
	SendToChannel(ctx context.Context, channelID string, text string) error
}

// Config controls the dispatcher.
type Config struct {
	Spec        string        // cron spec for the evaluation pass; default "* * * * *"
	SendTimeout time.Duration // per-delivery bound; default 10s
	RatePerSec  int           // outgoing send rate; default 10
	Timezone    string        // IANA TZ; empty = system local
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Spec) == "" {
		c.Spec = "* * * * *"
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 10
	}
	return c
}

// Dispatcher owns the periodic evaluation pass.
type Dispatcher struct {
	mu  sync.Mutex
	cfg Config

	store storage.Store
	sink  Sink
	log   logx.Logger

	limiter *rate.Limiter
	c       *cron.Cron
	runCtx  context.Context

	// passMu is the cross-trigger run gate: SkipIfStillRunning only
	// serializes jobs within one cron instance, so a trigger replaced by
	// Apply could otherwise overlap the old trigger's in-flight pass.
	passMu sync.Mutex
}

func New(cfg Config, store storage.Store, sink Sink, log logx.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		cfg:     cfg,
		store:   store,
		sink:    sink,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// Start schedules the evaluation pass. SkipIfStillRunning guarantees a new
// pass never begins while the previous one is still going.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.c != nil {
		return nil
	}
	d.runCtx = ctx
	return d.startLocked()
}

func (d *Dispatcher) startLocked() error {
	loc := time.Local
	if tz := strings.TrimSpace(d.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return err
		}
		loc = l
	}

	crlog := cronLogger{log: d.log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(crlog), cron.SkipIfStillRunning(crlog)),
	)
	ctx := d.runCtx
	if _, err := c.AddFunc(d.cfg.Spec, func() {
		d.Pass(ctx, time.Now().In(loc))
	}); err != nil {
		return err
	}
	c.Start()
	d.c = c
	d.log.Info("dispatcher started", logx.String("spec", d.cfg.Spec), logx.String("tz", loc.String()))
	return nil
}

// Stop halts the trigger and waits for an in-flight pass to finish, bounded
// by ctx.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	c := d.c
	d.c = nil
	d.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		d.log.Warn("dispatcher stop timed out", logx.Err(ctx.Err()))
	}
}

// Apply updates tunables at runtime. Send timeout and rate take effect
// immediately; a changed spec or timezone replaces the trigger, and the
// replacement starts only after the old trigger's in-flight pass drains.
func (d *Dispatcher) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	d.mu.Lock()
	defer d.mu.Unlock()

	restart := d.c != nil && (cfg.Spec != d.cfg.Spec || cfg.Timezone != d.cfg.Timezone)
	d.cfg = cfg
	d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)

	if restart {
		old := d.c
		d.c = nil
		go func() {
			<-old.Stop().Done()
			d.mu.Lock()
			defer d.mu.Unlock()
			// A later Apply or Start may have brought a trigger up, and
			// after Stop there is nothing to replace.
			if d.c != nil || d.runCtx == nil || d.runCtx.Err() != nil {
				return
			}
			if err := d.startLocked(); err != nil {
				d.log.Error("dispatcher restart failed", logx.Err(err))
			}
		}()
	}
}

// Pass runs one evaluation iteration against the instant now. All schedules
// in the pass are judged against that single captured moment. At most one
// pass runs at a time; a pass arriving while another is in flight is
// skipped, never queued.
func (d *Dispatcher) Pass(ctx context.Context, now time.Time) {
	if !d.passMu.TryLock() {
		d.log.Warn("pass skipped: previous pass still running")
		return
	}
	defer d.passMu.Unlock()

	log := d.log.With(logx.String("pass", shortID()))

	currentTime := now.Format("15:04")
	currentDay := domain.WeekdayCode(now.Weekday())
	today := now.Format("2006-01-02")

	schedules, err := d.store.ListSchedules(ctx)
	if err != nil {
		log.Error("list schedules failed", logx.Err(err))
		return
	}

	for i := range schedules {
		d.processOne(ctx, log, &schedules[i], currentDay, currentTime, today)
	}
}

// processOne applies the due guards and fires the schedule. Any failure,
// including a panic, stays contained to this schedule.
func (d *Dispatcher) processOne(ctx context.Context, log logx.Logger, sc *domain.Schedule, currentDay, currentTime, today string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic processing schedule",
				logx.Int64("schedule", sc.ID),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()

	if !sc.FiresOn(currentDay) {
		return
	}
	if sc.LastSent == today {
		return
	}
	// Zero-padded HH:MM compares lexicographically like time-of-day.
	// Both sides belong to the same captured day, never across midnight.
	if currentTime < sc.Time {
		return
	}

	start := time.Now()
	ok, fail := d.fanOut(ctx, log, sc)

	// Mark sent exactly once per passing iteration, even when every
	// delivery failed: the schedule is not retried later the same day.
	if err := d.store.SetLastSent(ctx, sc.ID, today); err != nil {
		log.Error("set last sent failed", logx.Int64("schedule", sc.ID), logx.Err(err))
	}

	fields := []logx.Field{
		logx.Int64("schedule", sc.ID),
		logx.String("target", string(sc.Target)),
		logx.Int("ok", ok),
		logx.Int("fail", fail),
		logx.Duration("took", time.Since(start)),
	}
	if fail > 0 {
		log.Warn("schedule dispatched with failures", fields...)
	} else {
		log.Info("schedule dispatched", fields...)
	}

	if err := d.store.AppendAudit(ctx, storage.AuditEntry{
		Action:     "dispatch",
		ScheduleID: sc.ID,
		OK:         ok,
		Fail:       fail,
		TookMS:     time.Since(start).Milliseconds(),
	}); err != nil {
		log.Warn("audit append failed", logx.Err(err))
	}
}

// fanOut attempts every delivery for the schedule. A failure for one
// recipient never stops delivery to the remaining ones.
func (d *Dispatcher) fanOut(ctx context.Context, log logx.Logger, sc *domain.Schedule) (ok, fail int) {
	switch sc.Target {
	case domain.TargetDirect:
		for _, uid := range sc.TargetIDs {
			if err := d.sendOne(ctx, func(c context.Context) error {
				return d.sink.SendDirect(c, uid, sc.Message)
			}); err != nil {
				log.Warn("direct delivery failed",
					logx.Int64("schedule", sc.ID),
					logx.String("recipient", uid),
					logx.Err(err),
				)
				fail++
				continue
			}
			ok++
		}
	case domain.TargetChannel:
		for _, cid := range sc.TargetIDs {
			if err := d.sendOne(ctx, func(c context.Context) error {
				return d.sink.SendToChannel(c, cid, sc.Message)
			}); err != nil {
				log.Warn("channel delivery failed",
					logx.Int64("schedule", sc.ID),
					logx.String("channel", cid),
					logx.Err(err),
				)
				fail++
				continue
			}
			ok++
		}
	default:
		log.Error("unknown target kind", logx.Int64("schedule", sc.ID), logx.String("target", string(sc.Target)))
	}
	return ok, fail
}

func (d *Dispatcher) sendOne(ctx context.Context, send func(context.Context) error) error {
	// Snapshot mutable dependencies to avoid races with Apply().
	d.mu.Lock()
	lim := d.limiter
	timeout := d.cfg.SendTimeout
	d.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return err
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return send(sctx)
}

func shortID() string {
	return uuid.NewString()[:8]
}

// cronLogger adapts logx to robfig/cron's logging interface.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
