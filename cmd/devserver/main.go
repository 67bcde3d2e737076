// Command devserver runs an in-memory stand-in for the Nyord notification
// backend: login, the notifications REST API, the /ws push channel and
// /dev endpoints for injecting notifications and transactions.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/nyord-notifier/internal/devserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "devserver:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	addr := pflag.String("addr", envOr("NYORD_DEV_ADDR", ":8000"), "listen address")
	secret := pflag.String("secret", envOr("NYORD_DEV_SECRET", "dev-secret"), "HS256 signing secret")
	users := pflag.StringSlice("user", []string{"alice:password"}, "username:password to register (repeatable)")
	pflag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	srv := devserver.New(*secret, devserver.WithLogger(log))
	for _, u := range *users {
		name, pw, ok := strings.Cut(u, ":")
		if !ok || name == "" {
			return fmt.Errorf("bad --user %q, want username:password", u)
		}
		id := srv.AddUser(name, pw)
		log.Info("registered user", zap.String("username", name), zap.Int64("user_id", id))
	}

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", *addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
