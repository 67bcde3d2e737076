// Command notifier is the Nyord notification inbox for the terminal.
//
// Usage:
//
//	notifier [--config path] [run]   open the inbox for the stored session
//	notifier login                   sign in and store the session token
//	notifier logout                  forget the token and the cached inbox
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/nyord-notifier/internal/alert"
	"github.com/nhle/nyord-notifier/internal/app"
	"github.com/nhle/nyord-notifier/internal/credential"
	"github.com/nhle/nyord-notifier/internal/events"
	"github.com/nhle/nyord-notifier/internal/logging"
	"github.com/nhle/nyord-notifier/internal/metrics"
	"github.com/nhle/nyord-notifier/internal/model"
	"github.com/nhle/nyord-notifier/internal/session"
	"github.com/nhle/nyord-notifier/internal/store"
	appsync "github.com/nhle/nyord-notifier/internal/sync"
	"github.com/nhle/nyord-notifier/internal/theme"
)

// alertRetention bounds how long alerted ids are remembered.
const alertRetention = 30 * 24 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "notifier:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("notifier", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", model.DefaultConfigPath(), "path to config.yaml")
	token := fs.String("token", os.Getenv("NYORD_TOKEN"), "session token to use instead of the stored one")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	ring, err := credential.Open(model.ConfigDir())
	if err != nil {
		return err
	}
	tokens := credential.NewTokens(ring)

	cmd := "run"
	if fs.NArg() > 0 {
		cmd = fs.Arg(0)
	}

	switch cmd {
	case "run":
		return runInbox(cfg, *configPath, tokens, *token)
	case "login":
		return login(cfg, tokens)
	case "logout":
		return logout(cfg, tokens)
	default:
		return fmt.Errorf("unknown command %q (want run, login or logout)", cmd)
	}
}

func runInbox(cfg *model.AppConfig, configPath string, tokens *credential.Tokens, override string) error {
	log, err := logging.New(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	theme.Use(cfg.Display.Theme)

	raw := override
	if raw == "" {
		if raw, err = tokens.Get(); err != nil {
			return err
		}
	}
	if raw == "" {
		return errors.New("not signed in, run `notifier login` first")
	}

	sess, err := session.FromToken(raw)
	if err != nil {
		return err
	}
	if sess.Expired(time.Now()) {
		return errors.New("session expired, run `notifier login` again")
	}

	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if n, err := db.PruneAlerted(ctx, time.Now().Add(-alertRetention)); err != nil {
		log.Warn("pruning alert ledger", zap.Error(err))
	} else if n > 0 {
		log.Debug("pruned alert ledger", zap.Int64("removed", n))
	}

	presenter, err := alert.NewDesktopPresenter(ctx, db)
	if err != nil {
		return err
	}

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	var bus events.Bus = events.NewLocalBus()
	if cfg.Events.RedisAddr != "" {
		rdb := events.NewRedisClient(cfg.Events.RedisAddr, cfg.Events.RedisPassword)
		defer rdb.Close()
		bus = events.NewRedisBridge(bus, rdb, cfg.Events.RedisChannel, log)
	}

	provider := appsync.New(appsync.ConfigFrom(cfg),
		appsync.WithCache(db),
		appsync.WithPresenter(presenter),
		appsync.WithBus(bus),
		appsync.WithLogger(log),
		appsync.WithMetrics(m),
	)
	provider.Start(sess)
	defer provider.Stop()

	log.Info("inbox started", zap.String("user_id", string(sess.UserID)), zap.String("api", cfg.API.BaseURL))

	root := app.New(provider,
		app.WithAlertControl(presenter),
		app.WithLogout(func() error {
			if err := db.ClearNotifications(context.Background(), sess.UserID); err != nil {
				log.Warn("clearing cached inbox", zap.Error(err))
			}
			return tokens.Delete()
		}),
		app.WithSettings(cfg, configPath),
		app.WithLogger(log),
	)

	final, err := tea.NewProgram(root, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(app.Model); ok && fm.LoggedOut() {
		fmt.Println("Signed out.")
	}
	return nil
}

func logout(cfg *model.AppConfig, tokens *credential.Tokens) error {
	raw, err := tokens.Get()
	if err != nil {
		return err
	}

	if sess, err := session.FromToken(raw); err == nil && sess.Valid() {
		db, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.ClearNotifications(context.Background(), sess.UserID); err != nil {
			return err
		}
	}

	if err := tokens.Delete(); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}
