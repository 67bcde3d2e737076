package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/nhle/nyord-notifier/internal/api"
	"github.com/nhle/nyord-notifier/internal/credential"
	"github.com/nhle/nyord-notifier/internal/model"
	"github.com/nhle/nyord-notifier/internal/session"
)

func login(cfg *model.AppConfig, tokens *credential.Tokens) error {
	var creds api.Credentials

	notEmpty := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&creds.Username).
				Validate(notEmpty("username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&creds.Password).
				Validate(notEmpty("password")),
		).Title("Sign in to Nyord").Description(cfg.API.BaseURL),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}
	creds.Username = strings.TrimSpace(creds.Username)

	timeout := cfg.API.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := api.NewClient(cfg.API.BaseURL, "", api.WithTimeout(cfg.API.Timeout))
	resp, err := client.Login(ctx, creds)
	if err != nil {
		if api.IsAuthError(err) {
			return errors.New("incorrect username or password")
		}
		return err
	}

	sess, err := session.FromToken(resp.AccessToken)
	if err != nil {
		return err
	}
	if err := tokens.Set(resp.AccessToken); err != nil {
		return err
	}

	name := sess.Username
	if name == "" {
		name = creds.Username
	}
	fmt.Printf("Signed in as %s (user %s).\n", name, sess.UserID)
	return nil
}
