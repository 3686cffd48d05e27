package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/mailtxn/pkg/client"
	"github.com/ArionMiles/mailtxn/pkg/config"
)

const connectivityTimeout = 10 * time.Second

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, credentials and API access",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.status(cmd.Context(), cmd.OutOrStdout()) {
				return errors.New("configuration issues detected")
			}
			return nil
		},
	}
}

// status prints one line per check and reports whether all passed.
func (a *app) status(ctx context.Context, out io.Writer) bool {
	fmt.Fprintln(out, "=== mailtxn status ===")
	fmt.Fprintln(out)

	allGood := true
	check := func(name string, err error, ok string) {
		if err != nil {
			fmt.Fprintf(out, "%s: ✗ %v\n", name, err)
			allGood = false
			return
		}
		fmt.Fprintf(out, "%s: ✓ %s\n", name, ok)
	}

	if _, err := os.Stat(a.configPath); err == nil {
		fmt.Fprintf(out, "Config file (%s): ✓ Found\n", a.configPath)
	} else {
		fmt.Fprintf(out, "Config file (%s): - Not found, using environment only\n", a.configPath)
	}

	check("Configuration", a.cfg.Validate(), fmt.Sprintf("source=%s output=%s", a.cfg.Source, a.cfg.Output))
	a.printPlugins(out)

	if !a.cfg.NeedsOAuth() {
		fmt.Fprintln(out, "OAuth: - Not needed for this source and output")
		return a.finish(out, allGood)
	}

	_, err := os.Stat(a.cfg.ClientSecretFile)
	check(fmt.Sprintf("Credentials file (%s)", a.cfg.ClientSecretFile), err, "Found")

	tok, err := client.TokenFromFile(a.cfg.TokenFile)
	if errors.Is(err, os.ErrNotExist) {
		err = errors.New("not found (run 'mailtxn setup')")
	}
	switch {
	case err != nil:
		check(fmt.Sprintf("OAuth token (%s)", a.cfg.TokenFile), err, "")
	case tok.Expiry.Before(time.Now()):
		fmt.Fprintf(out, "OAuth token (%s): ⚠ Expired (will refresh on next run)\n", a.cfg.TokenFile)
	default:
		fmt.Fprintf(out, "OAuth token (%s): ✓ Valid (expires: %s)\n", a.cfg.TokenFile, tok.Expiry.Format(time.RFC3339))
	}

	if !allGood {
		return a.finish(out, allGood)
	}

	scopes, err := a.registry.Scopes(a.cfg.Source, a.cfg.Output)
	if err != nil {
		check("Plugins", err, "")
		return a.finish(out, allGood)
	}
	httpClient, err := client.New(ctx, client.Config{
		SecretFile: a.cfg.ClientSecretFile,
		TokenFile:  a.cfg.TokenFile,
		Scopes:     scopes,
	}, a.logger)
	if err != nil {
		check("OAuth client", err, "")
		return a.finish(out, allGood)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "API connectivity:")
	if a.cfg.Source == config.SourceGmail {
		check("  Gmail API", testGmailAPI(ctx, httpClient), "Connected")
	}
	if a.cfg.Output == config.OutputSheets && a.cfg.GSheetsID != "" {
		check("  Sheets API", testSheetsAPI(ctx, httpClient, a.cfg.GSheetsID), "Connected")
	}
	return a.finish(out, allGood)
}

func (a *app) printPlugins(out io.Writer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sources:")
	for _, p := range a.registry.ListReaders() {
		fmt.Fprintf(out, "  %-7s %s [%s]\n", p.Name(), p.Description(), strings.Join(p.ConfigKeys(), ", "))
	}
	fmt.Fprintln(out, "Outputs:")
	for _, p := range a.registry.ListWriters() {
		fmt.Fprintf(out, "  %-7s %s [%s]\n", p.Name(), p.Description(), strings.Join(p.ConfigKeys(), ", "))
	}
	fmt.Fprintln(out)
}

func (a *app) finish(out io.Writer, allGood bool) bool {
	fmt.Fprintln(out)
	if allGood {
		fmt.Fprintln(out, "Status: ✓ Ready to run")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Run 'mailtxn run' to extract transactions.")
	} else {
		fmt.Fprintln(out, "Status: ✗ Configuration issues detected")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Fix the issues above, then run 'mailtxn status' again.")
	}
	return allGood
}

func testGmailAPI(ctx context.Context, httpClient *http.Client) error {
	ctx, cancel := context.WithTimeout(ctx, connectivityTimeout)
	defer cancel()

	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	if _, err := svc.Users.GetProfile("me").Context(ctx).Do(); err != nil {
		return fmt.Errorf("API call failed: %w", err)
	}
	return nil
}

func testSheetsAPI(ctx context.Context, httpClient *http.Client, id string) error {
	ctx, cancel := context.WithTimeout(ctx, connectivityTimeout)
	defer cancel()

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	if _, err := svc.Spreadsheets.Get(id).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return fmt.Errorf("API call failed: %w", err)
	}
	return nil
}
