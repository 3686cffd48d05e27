package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/ArionMiles/mailtxn/internal/plugins"
	"github.com/ArionMiles/mailtxn/pkg/client"
	"github.com/ArionMiles/mailtxn/pkg/config"
	"github.com/ArionMiles/mailtxn/pkg/logging"
)

func testApp(t *testing.T, mutate func(*config.Config)) *app {
	t.Helper()

	cfg := config.Defaults()
	cfg.Timezone = "UTC"
	mutate(&cfg)
	return &app{
		configPath: filepath.Join(t.TempDir(), "config.json"),
		cfg:        cfg,
		registry:   plugins.Builtin(),
		logger:     logging.Discard(),
	}
}

func TestRunMbox(t *testing.T) {
	out := filepath.Join(t.TempDir(), "items.json")
	a := testApp(t, func(c *config.Config) {
		c.Source = config.SourceMbox
		c.MboxPath = filepath.Join("..", "..", "pkg", "reader", "mbox", "testdata", "alerts.mbox")
		c.Output = config.OutputJSON
		c.OutputFile = out
	})

	if err := a.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0]["id"] != "abc123@hdfcbank.net" || items[0]["type"] != "UPI Debit" {
		t.Errorf("item 0: got %v", items[0])
	}
}

func TestRunInvalidConfig(t *testing.T) {
	a := testApp(t, func(c *config.Config) { c.Source = config.SourceMbox })
	if err := a.run(context.Background()); err == nil {
		t.Error("got nil error for mbox source without a path")
	}
}

func TestRunWithoutToken(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "client_secret.json")
	body := `{"installed":{"client_id":"id","client_secret":"s","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`
	if err := os.WriteFile(secret, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	a := testApp(t, func(c *config.Config) {
		c.ClientSecretFile = secret
		c.TokenFile = filepath.Join(dir, "token.json")
	})
	if err := a.run(context.Background()); !errors.Is(err, client.ErrNoToken) {
		t.Errorf("got %v, want ErrNoToken", err)
	}
}

func TestAuthFailureHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := client.SaveToken(path, &oauth2.Token{AccessToken: "a"}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := authFailureHandler(path, logger)

	h(errors.New("invalid_grant"))
	h(errors.New("401"))

	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("token file still present: %v", err)
	}
	if n := strings.Count(buf.String(), "authorization failed"); n != 1 {
		t.Errorf("got %d log lines, want 1", n)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   bool
		substr string
	}{
		{
			name: "offline ready",
			mutate: func(c *config.Config) {
				c.Source, c.MboxPath = config.SourceMbox, "takeout.mbox"
			},
			want:   true,
			substr: "Not needed",
		},
		{
			name:   "invalid output",
			mutate: func(c *config.Config) { c.Source, c.MboxPath, c.Output = config.SourceMbox, "a.mbox", "xml" },
			want:   false,
			substr: "Configuration: ✗",
		},
		{
			name: "missing credentials",
			mutate: func(c *config.Config) {
				c.ClientSecretFile = filepath.Join(os.TempDir(), "mailtxn-missing-secret.json")
				c.TokenFile = filepath.Join(os.TempDir(), "mailtxn-missing-token.json")
			},
			want:   false,
			substr: "not found (run 'mailtxn setup')",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := testApp(t, tc.mutate)
			var out bytes.Buffer
			if got := a.status(context.Background(), &out); got != tc.want {
				t.Errorf("got %v, want %v\n%s", got, tc.want, out.String())
			}
			if !strings.Contains(out.String(), tc.substr) {
				t.Errorf("output missing %q:\n%s", tc.substr, out.String())
			}
			if !strings.Contains(out.String(), "mbox") {
				t.Errorf("output missing plugin list:\n%s", out.String())
			}
		})
	}
}
