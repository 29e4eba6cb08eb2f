package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/config"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/layout"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/live"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/natsbus"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/office"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/schedule"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/session"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/snapshot"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/store"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/telegram"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("orchestra %s\n", version)
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: orchestra <command>\n\nCommands:\n  serve      Follow an execution and serve the dashboard state\n  version    Print version\n")
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetLogLoggerLevel(cfg.Log.SlogLevel())

	slog.Info("starting orchestra", "version", version, "backend", cfg.Backend.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite message journal
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", bus.Port())

	client, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("nats client: %w", err)
	}
	defer client.Close()

	// Validate the backend URL once; Endpoint cannot fail for it afterwards
	backend := cfg.Backend
	if _, err := live.Endpoint(backend.URL, backend.WSPrefix, "probe"); err != nil {
		return err
	}
	channel := live.NewChannel(live.Options{
		URL: func(scope string) string {
			u, _ := live.Endpoint(backend.URL, backend.WSPrefix, scope)
			return u
		},
		ReconnectDelay: cfg.Live.ReconnectDelay,
		Buffer:         cfg.Live.Buffer,
	})
	defer channel.Close()

	layoutOpts := layout.DefaultOptions()
	layoutOpts.Capacity = cfg.Roster.LayoutCapacity
	positions := layout.NewCache(layoutOpts)

	policy := office.Discover
	if cfg.Roster.Legacy() {
		policy = office.Legacy
	}

	sess := session.New(session.Options{
		Channel:      channel,
		Fetcher:      snapshot.NewClient(cfg.Backend.URL, cfg.Backend.Timeout),
		Policy:       policy,
		Layout:       positions,
		Journal:      db,
		Publisher:    client,
		FetchTimeout: cfg.Backend.Timeout,
	})
	defer sess.Close()

	if _, err := sess.ServeIPC(client); err != nil {
		return err
	}
	go func() {
		if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("session stopped", "error", err)
		}
	}()

	// Telegram bot
	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram, sess)
		if err != nil {
			return fmt.Errorf("init telegram bot: %w", err)
		}
		notifier := telegram.NewNotifier(bot, cfg.Telegram.ChatIDs)
		sess.OnChange(notifier.Observe)
		// Validated by config.Load
		remind, _ := schedule.Parse(cfg.Telegram.Remind)
		go notifier.RunReminders(ctx, remind)
		go bot.Start(ctx)
		slog.Info("telegram bot started", "chats", len(cfg.Telegram.ChatIDs))
	} else {
		slog.Warn("telegram token not set, bot disabled")
	}

	// Web API
	if cfg.Web.Enabled {
		srv := web.NewServer(sess, db, bus, cfg.Web, version)
		srv.SetLayout(positions)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
	}

	if cfg.Execution != "" {
		sess.SetScope(cfg.Execution)
		slog.Info("following execution", "execution", cfg.Execution)
	}

	// Wait for shutdown signal, reloading on SIGHUP
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			cfg = reload(cfg, sess)
			continue
		}
		slog.Info("shutting down", "signal", sig)
		break
	}
	cancel()
	return nil
}

// reload applies the reloadable parts of a changed config file and returns
// the config now in effect.
func reload(cur *config.Config, sess *session.Session) *config.Config {
	next, err := config.Load()
	if err != nil {
		slog.Error("config reload failed", "error", err)
		return cur
	}

	diff := config.Diff(cur, next)
	for _, field := range diff.NonReloadable {
		slog.Warn("config change requires restart", "field", field)
	}
	if !diff.HasChanges() {
		slog.Info("config reloaded, nothing to apply")
		return cur
	}
	if diff.LogLevelChanged {
		slog.SetLogLoggerLevel(next.Log.SlogLevel())
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.ExecutionChanged {
		sess.SetScope(diff.NewExecution)
		slog.Info("following execution", "execution", diff.NewExecution)
	}

	// Keep non-reloadable settings as they were started
	applied := *cur
	applied.Execution = next.Execution
	applied.Log = next.Log
	return &applied
}
