// Package config loads mailtxn settings from an optional JSON file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ArionMiles/mailtxn/pkg/reader/gmail"
)

// Default file locations.
const (
	ConfigFile       = "config.json"
	ClientSecretFile = "data/client_secret.json"
	TokenFile        = "data/token.json"
)

// Message sources.
const (
	SourceGmail = "gmail"
	SourceMbox  = "mbox"
)

// Output sinks.
const (
	OutputCSV    = "csv"
	OutputJSON   = "json"
	OutputSheets = "sheets"
)

// Config holds the application configuration. Every field can be set in
// config.json or by the environment variable named in its tag; the
// environment wins.
type Config struct {
	// Source selects the message reader: gmail or mbox.
	Source string `koanf:"MAILTXN_SOURCE"`
	// MboxPath is the mbox export read when Source is mbox.
	MboxPath string `koanf:"MAILTXN_MBOX_PATH"`

	QueryFrom string `koanf:"MAILTXN_QUERY_FROM"`
	// QuerySubjects is a |-separated list of subjects, any of which matches.
	QuerySubjects   string `koanf:"MAILTXN_QUERY_SUBJECTS"`
	QueryAfter      string `koanf:"MAILTXN_QUERY_AFTER"`
	QueryBefore     string `koanf:"MAILTXN_QUERY_BEFORE"`
	QueryMaxResults int64  `koanf:"MAILTXN_QUERY_MAX_RESULTS"`

	// Output selects the writer: csv, json or sheets.
	Output string `koanf:"MAILTXN_OUTPUT"`
	// OutputFile is the csv or json destination. "-" means stdout.
	OutputFile string `koanf:"MAILTXN_OUTPUT_FILE"`

	// Timezone is the IANA zone used to render unparsed message dates.
	// Empty means the local zone.
	Timezone string `koanf:"MAILTXN_TIMEZONE"`
	// ListenAddr is the address for `mailtxn serve`.
	ListenAddr string `koanf:"MAILTXN_LISTEN_ADDR"`

	ClientSecretFile string `koanf:"MAILTXN_CLIENT_SECRET_FILE"`
	TokenFile        string `koanf:"MAILTXN_TOKEN_FILE"`

	// GSheetsTitle is the title for a new Google Sheet (used when creating).
	// Environment variable: GSHEETS_TITLE
	GSheetsTitle string `koanf:"GSHEETS_TITLE"`

	// GSheetsID is the ID of an existing Google Sheet to use.
	// Environment variable: GSHEETS_ID
	GSheetsID string `koanf:"GSHEETS_ID"`

	// GSheetsName is the name of the sheet/tab within the spreadsheet.
	// Environment variable: GSHEETS_NAME
	GSheetsName string `koanf:"GSHEETS_NAME"`
}

// Defaults returns the configuration used for keys that are not set.
func Defaults() Config {
	return Config{
		Source:           SourceGmail,
		Output:           OutputCSV,
		OutputFile:       "-",
		ListenAddr:       ":8080",
		ClientSecretFile: ClientSecretFile,
		TokenFile:        TokenFile,
	}
}

// Load reads path, if it exists, then the environment, on top of Defaults.
// An empty path skips the file.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), kJson.Parser()); err != nil {
				return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("checking config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the selected source and output depend on.
func (c Config) Validate() error {
	switch c.Source {
	case SourceGmail:
	case SourceMbox:
		if c.MboxPath == "" {
			return errors.New("MAILTXN_MBOX_PATH is required for the mbox source")
		}
	default:
		return fmt.Errorf("unknown source %q, want %s or %s", c.Source, SourceGmail, SourceMbox)
	}

	switch c.Output {
	case OutputCSV, OutputJSON:
		if c.OutputFile == "" {
			return fmt.Errorf("MAILTXN_OUTPUT_FILE is required for %s output", c.Output)
		}
	case OutputSheets:
		if c.GSheetsName == "" {
			return errors.New("GSHEETS_NAME is required for sheets output")
		}
		if c.GSheetsID == "" && c.GSheetsTitle == "" {
			return errors.New("either GSHEETS_ID or GSHEETS_TITLE is required for sheets output")
		}
	default:
		return fmt.Errorf("unknown output %q, want %s, %s or %s", c.Output, OutputCSV, OutputJSON, OutputSheets)
	}

	if c.QueryMaxResults < 0 {
		return fmt.Errorf("MAILTXN_QUERY_MAX_RESULTS must not be negative, got %d", c.QueryMaxResults)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// NeedsOAuth reports whether the configured source or output calls a
// Google API.
func (c Config) NeedsOAuth() bool {
	return c.Source == SourceGmail || c.Output == OutputSheets
}

// SubjectList splits QuerySubjects, dropping blank entries.
func (c Config) SubjectList() []string {
	var subjects []string
	for _, s := range strings.Split(c.QuerySubjects, "|") {
		if s = strings.TrimSpace(s); s != "" {
			subjects = append(subjects, s)
		}
	}
	return subjects
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// GmailQuery builds the reader query from the MAILTXN_QUERY_* settings.
func (c Config) GmailQuery() gmail.Query {
	return gmail.Query{
		From:       c.QueryFrom,
		Subjects:   c.SubjectList(),
		After:      c.QueryAfter,
		Before:     c.QueryBefore,
		MaxResults: c.QueryMaxResults,
	}
}
