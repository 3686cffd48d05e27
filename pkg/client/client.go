// Package client builds OAuth2 HTTP clients for the Google APIs mailtxn uses.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNoToken is returned when no saved token exists yet.
var ErrNoToken = errors.New("no oauth token found, run `mailtxn setup`")

// Config describes where credentials live and which scopes to request.
type Config struct {
	// SecretFile is the OAuth client secret downloaded from Google Cloud.
	SecretFile string
	// TokenFile stores the user's token between runs.
	TokenFile string
	Scopes    []string
	// OnAuthFailure is called once when refreshing the token fails.
	OnAuthFailure func(error)
	// CallbackPort is the loopback port used by Authorize.
	// Defaults to DefaultCallbackPort.
	CallbackPort int
}

func (c Config) oauth2() (*oauth2.Config, error) {
	b, err := os.ReadFile(c.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}
	oc, err := google.ConfigFromJSON(b, c.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}
	return oc, nil
}

// New creates an HTTP client authorized with the saved token. Refreshed
// tokens are written back to the token file.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*http.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	oc, err := cfg.oauth2()
	if err != nil {
		return nil, err
	}

	tok, err := TokenFromFile(cfg.TokenFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, ErrNoToken
	case err != nil:
		return nil, fmt.Errorf("loading token: %w", err)
	}

	src := &tokenSource{
		base:          oc.TokenSource(ctx, tok),
		last:          tok.AccessToken,
		path:          cfg.TokenFile,
		onAuthFailure: cfg.OnAuthFailure,
		logger:        logger.With("component", "oauth"),
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// tokenSource reports the first refresh failure and persists every new
// access token.
type tokenSource struct {
	base          oauth2.TokenSource
	path          string
	onAuthFailure func(error)
	logger        *slog.Logger

	mu       sync.Mutex
	last     string
	reported bool
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if !s.reported && s.onAuthFailure != nil {
			s.reported = true
			s.onAuthFailure(err)
		}
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	if tok.AccessToken == s.last || s.path == "" {
		return tok, nil
	}
	s.last = tok.AccessToken
	if err := SaveToken(s.path, tok); err != nil {
		s.logger.Warn("failed to save refreshed token", "error", err)
	} else {
		s.logger.Debug("saved refreshed token", "path", s.path)
	}
	return tok, nil
}

// TokenFromFile reads a token saved by SaveToken.
func TokenFromFile(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return tok, nil
}

// SaveToken writes token to path, creating its directory. An existing file
// is replaced by rename.
func SaveToken(path string, token *oauth2.Token) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	b, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

// RemoveToken deletes the token file. A missing file is not an error.
func RemoveToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
