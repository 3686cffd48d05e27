// Command snippetdump fetches messages matching the configured query and
// writes each one as JSON, for building extraction test fixtures.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ArionMiles/mailtxn/pkg/api"
	"github.com/ArionMiles/mailtxn/pkg/client"
	"github.com/ArionMiles/mailtxn/pkg/config"
	"github.com/ArionMiles/mailtxn/pkg/logging"
	"github.com/ArionMiles/mailtxn/pkg/reader/gmail"
)

const dumpDir = "testdata/dump"

func main() {
	logger := logging.Setup(logging.DefaultConfig())
	if err := run(context.Background(), logger); err != nil {
		logger.Error("snippet dump failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load(config.ConfigFile)
	if err != nil {
		return err
	}

	httpClient, err := client.New(ctx, client.Config{
		SecretFile: cfg.ClientSecretFile,
		TokenFile:  cfg.TokenFile,
		Scopes:     []string{gmail.Scope},
	}, logger)
	if err != nil {
		return fmt.Errorf("creating http client: %w", err)
	}

	query := cfg.GmailQuery()
	if query.MaxResults == 0 {
		query.MaxResults = 10
	}
	reader, err := gmail.New(httpClient, gmail.Config{Query: query}, logger)
	if err != nil {
		return fmt.Errorf("creating gmail reader: %w", err)
	}

	logger.Info("fetching messages", "query", query.String())
	msgs, err := reader.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading messages: %w", err)
	}

	n, err := dump(dumpDir, msgs, logger)
	if err != nil {
		return err
	}
	logger.Info("snippet dump complete", "total_dumped", n, "directory", dumpDir)
	return nil
}

// dump writes each message to dir, skipping files that already exist, and
// returns how many were written.
func dump(dir string, msgs []*api.RawMessage, logger *slog.Logger) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating dump directory: %w", err)
	}

	count := 0
	for _, msg := range msgs {
		path := filepath.Join(dir, sanitizeFilename(msg.ID)+".json")
		if _, err := os.Stat(path); err == nil {
			logger.Debug("file already exists, skipping", "file", path)
			continue
		}

		data, err := json.MarshalIndent(msg, "", "  ")
		if err != nil {
			return count, fmt.Errorf("marshaling message %s: %w", msg.ID, err)
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			logger.Warn("failed to dump message", "message_id", msg.ID, "error", err)
			continue
		}
		logger.Info("dumped message", "message_id", msg.ID, "file", path)
		count++
	}
	return count, nil
}

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*@\x00-\x1f]`)
	underscores = regexp.MustCompile(`_+`)
)

func sanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	name = underscores.ReplaceAllString(name, "_")

	name = strings.Trim(name, "_")
	if len(name) > 200 {
		name = name[:200]
	}
	if name == "" {
		name = "message"
	}
	return name
}
