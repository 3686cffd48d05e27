package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/mailtxn/pkg/client"
)

func newSetupCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Authorize mailtxn to read Gmail and write Google Sheets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-authorize even if a token exists")
	return cmd
}

func (a *app) setup(cmd *cobra.Command, force bool) error {
	out := cmd.OutOrStdout()
	secret, token := a.cfg.ClientSecretFile, a.cfg.TokenFile

	fmt.Fprintln(out, "=== mailtxn setup ===")
	fmt.Fprintln(out)

	if _, err := os.Stat(secret); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", secret, secret)
	}

	if !force {
		if _, err := os.Stat(token); err == nil {
			fmt.Fprintf(out, "Already authenticated! Token file exists: %s\n\n", token)
			fmt.Fprintln(out, "To re-authenticate, run: mailtxn setup --force")
			return nil
		}
	} else {
		if err := client.RemoveToken(token); err != nil {
			a.logger.Warn("failed to remove existing token", "error", err)
		}
		fmt.Fprintln(out, "Forcing re-authentication...")
	}

	scopes := a.registry.AllScopes()
	fmt.Fprintln(out, "Requested permissions:")
	for _, s := range scopes {
		fmt.Fprintf(out, "  - %s\n", s)
	}
	fmt.Fprintln(out)

	_, err := client.Authorize(cmd.Context(), client.Config{
		SecretFile: secret,
		TokenFile:  token,
		Scopes:     scopes,
	}, a.logger)
	if err != nil {
		return a.fail("authentication failed", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Setup complete ===")
	fmt.Fprintf(out, "Token saved to: %s\n\n", token)
	fmt.Fprintln(out, "Run 'mailtxn status' to check the configuration, then 'mailtxn run'.")
	return nil
}
