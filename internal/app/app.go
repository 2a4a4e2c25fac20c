package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"schedbot/internal/bot"
	"schedbot/internal/config"
	"schedbot/internal/dispatch"
	"schedbot/internal/session"
	"schedbot/internal/storage"
	kit "schedbot/internal/transport"
	"schedbot/internal/transport/telegram"
	"schedbot/pkg/logx"
)

// StopReason labels why the app is shutting down (logs only).
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSIGINT     StopReason = "sigint"
	StopSIGTERM    StopReason = "sigterm"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)

// App wires the components together: config, logging, storage, the Telegram
// adapter, the wizard session registry, the dispatch engine and the bot.
type App struct {
	cfgPath string

	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	store    storage.Store
	storeCfg storage.Config
	adapter  *telegram.Adapter
	sessions *session.Registry
	disp     *dispatch.Dispatcher
	bot      *bot.Bot

	updates chan kit.Update

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(validateConfig)

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}

	ttl, sweep, err := mapSessionConfig(cfg)
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}
	sessions := session.NewRegistry(ttl, sweep, log.With(logx.String("comp", "session")))

	dc, err := mapDispatchConfig(cfg)
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}
	disp := dispatch.New(dc, store, ad, log.With(logx.String("comp", "dispatch")))

	b := bot.New(bot.Config{OwnerUserIDs: cfg.Telegram.OwnerUserIDs},
		ad, store, sessions, log.With(logx.String("comp", "bot")))

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		logs:     logSvc,
		log:      log,
		store:    store,
		storeCfg: sc,
		adapter:  ad,
		sessions: sessions,
		disp:     disp,
		bot:      b,
		updates:  make(chan kit.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}
	if err := a.disp.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start dispatch: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sessions.Run(runCtx)
	}()

	// Update pump: one update at a time keeps per-user wizard steps ordered.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case up, ok := <-a.updates:
				if !ok {
					return
				}
				a.bot.HandleUpdate(runCtx, up)
			}
		}
	}()

	// Config hot-reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(newCfg)
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready")
	}

	a.log.Info("app started")
	return nil
}

// applyConfig pushes a validated reload into the live components. The
// validator ran before commit, so the mapping helpers cannot fail here.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(mapLogConfig(cfg))

	if dc, err := mapDispatchConfig(cfg); err == nil {
		a.disp.Apply(dc)
	}
	a.bot.SetOwners(cfg.Telegram.OwnerUserIDs)

	if sc, err := mapStorageConfig(cfg); err == nil && sc != a.storeCfg {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err == nil && sent {
		a.log.Debug("sd_notify stopping")
	}

	if a.cancel != nil {
		a.cancel()
	}

	// Bounded shutdown steps so one component cannot stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("dispatch", 2*time.Second, func(c context.Context) error { a.disp.Stop(c); return nil })
	step("goroutines", 2*time.Second, func(c context.Context) error {
		done := make(chan struct{})
		go func() { a.wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-c.Done():
			return c.Err()
		}
	})
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	a.logs.Close()
	return nil
}
