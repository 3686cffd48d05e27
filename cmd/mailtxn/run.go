package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/mailtxn/internal/plugins"
	"github.com/ArionMiles/mailtxn/pkg/client"
	"github.com/ArionMiles/mailtxn/pkg/extract"
	"github.com/ArionMiles/mailtxn/pkg/orchestrator"
	"github.com/ArionMiles/mailtxn/pkg/reader/gmail"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch messages, extract transactions and write them out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.run(ctx)
		},
	}
}

func (a *app) run(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return a.fail("invalid configuration", err)
	}

	a.logger.Info("configuration loaded",
		"source", a.cfg.Source,
		"output", a.cfg.Output,
		"query", a.cfg.GmailQuery().String(),
	)

	scopes, err := a.registry.Scopes(a.cfg.Source, a.cfg.Output)
	if err != nil {
		return a.fail("resolving plugins", err)
	}

	settings := plugins.Settings{
		Config:        a.cfg,
		OnAuthFailure: authFailureHandler(a.cfg.TokenFile, a.logger),
	}

	var httpClient *http.Client
	if len(scopes) > 0 {
		a.logger.Debug("OAuth scopes required", "scopes", scopes)
		httpClient, err = client.New(ctx, client.Config{
			SecretFile:    a.cfg.ClientSecretFile,
			TokenFile:     a.cfg.TokenFile,
			Scopes:        scopes,
			OnAuthFailure: settings.OnAuthFailure,
		}, a.logger)
		if err != nil {
			return a.fail("creating http client", err)
		}
	}

	reader, err := a.registry.CreateReader(a.cfg.Source, httpClient, settings,
		a.logger.With("plugin", a.cfg.Source))
	if err != nil {
		return a.fail("creating reader", err)
	}

	writer, err := a.registry.CreateWriter(a.cfg.Output, httpClient, settings,
		a.logger.With("plugin", a.cfg.Output))
	if err != nil {
		return a.fail("creating writer", err)
	}

	pipeline, err := a.pipeline()
	if err != nil {
		return a.fail("building pipeline", err)
	}

	sum, err := orchestrator.New(reader, pipeline, writer, a.logger).Run(ctx)
	if err != nil {
		if errors.Is(err, gmail.ErrAuth) {
			return a.fail("gmail rejected the saved credentials", err)
		}
		return a.fail("run failed", err)
	}

	for t, n := range sum.ByType {
		a.logger.Info("transactions", "type", t, "count", n)
	}
	return nil
}

func (a *app) pipeline() (*extract.Pipeline, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	return extract.New(extract.WithLocation(loc), extract.WithLogger(a.logger)), nil
}

// authFailureHandler returns the callback given to the OAuth client and the
// Gmail reader. Both may see the same failure, so it acts once: the stale
// token is removed and the user is asked to authorize again.
func authFailureHandler(tokenFile string, logger *slog.Logger) func(error) {
	var once sync.Once
	return func(err error) {
		once.Do(func() {
			logger.Error("authorization failed", "error", err)
			if rmErr := client.RemoveToken(tokenFile); rmErr != nil {
				logger.Warn("failed to remove token", "error", rmErr)
			}
			fmt.Fprintln(os.Stderr, "The saved Google token is no longer valid. Run `mailtxn setup` to authorize again.")
		})
	}
}
