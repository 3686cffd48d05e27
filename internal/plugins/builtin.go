package plugins

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ArionMiles/mailtxn/pkg/api"
	"github.com/ArionMiles/mailtxn/pkg/config"
	gmailreader "github.com/ArionMiles/mailtxn/pkg/reader/gmail"
	mboxreader "github.com/ArionMiles/mailtxn/pkg/reader/mbox"
	csvwriter "github.com/ArionMiles/mailtxn/pkg/writer/csv"
	jsonwriter "github.com/ArionMiles/mailtxn/pkg/writer/json"
	sheetswriter "github.com/ArionMiles/mailtxn/pkg/writer/sheets"
)

var errNoClient = errors.New("an authorized http client is required, run `mailtxn setup`")

// Builtin returns a registry holding every bundled reader and writer.
func Builtin() *Registry {
	r := NewRegistry()
	for _, p := range []ReaderPlugin{gmailPlugin{}, mboxPlugin{}} {
		if err := r.RegisterReader(p); err != nil {
			panic(err)
		}
	}
	for _, p := range []WriterPlugin{csvPlugin{}, jsonPlugin{}, sheetsPlugin{}} {
		if err := r.RegisterWriter(p); err != nil {
			panic(err)
		}
	}
	return r
}

type gmailPlugin struct{}

func (gmailPlugin) Name() string { return config.SourceGmail }

func (gmailPlugin) Description() string {
	return "Read transaction alert snippets from Gmail"
}

func (gmailPlugin) RequiredScopes() []string { return []string{gmailreader.Scope} }

func (gmailPlugin) ConfigKeys() []string {
	return []string{
		"MAILTXN_QUERY_FROM",
		"MAILTXN_QUERY_SUBJECTS",
		"MAILTXN_QUERY_AFTER",
		"MAILTXN_QUERY_BEFORE",
		"MAILTXN_QUERY_MAX_RESULTS",
	}
}

func (gmailPlugin) NewReader(httpClient *http.Client, s Settings, logger *slog.Logger) (api.Reader, error) {
	if httpClient == nil {
		return nil, errNoClient
	}
	return gmailreader.New(httpClient, gmailreader.Config{
		Query:         s.GmailQuery(),
		OnAuthFailure: s.OnAuthFailure,
	}, logger)
}

type mboxPlugin struct{}

func (mboxPlugin) Name() string { return config.SourceMbox }

func (mboxPlugin) Description() string {
	return "Read messages from an mbox export such as Google Takeout"
}

func (mboxPlugin) RequiredScopes() []string { return nil }

func (mboxPlugin) ConfigKeys() []string { return []string{"MAILTXN_MBOX_PATH"} }

func (mboxPlugin) NewReader(_ *http.Client, s Settings, logger *slog.Logger) (api.Reader, error) {
	return mboxreader.New(mboxreader.Config{Path: s.MboxPath}, logger)
}

type csvPlugin struct{}

func (csvPlugin) Name() string { return config.OutputCSV }

func (csvPlugin) Description() string { return "Write items to a CSV file or stdout" }

func (csvPlugin) RequiredScopes() []string { return nil }

func (csvPlugin) ConfigKeys() []string { return []string{"MAILTXN_OUTPUT_FILE"} }

func (csvPlugin) NewWriter(_ *http.Client, s Settings, logger *slog.Logger) (api.Writer, error) {
	return csvwriter.New(csvwriter.Config{FilePath: s.OutputFile}, logger)
}

type jsonPlugin struct{}

func (jsonPlugin) Name() string { return config.OutputJSON }

func (jsonPlugin) Description() string { return "Write items as a JSON array to a file or stdout" }

func (jsonPlugin) RequiredScopes() []string { return nil }

func (jsonPlugin) ConfigKeys() []string { return []string{"MAILTXN_OUTPUT_FILE"} }

func (jsonPlugin) NewWriter(_ *http.Client, s Settings, logger *slog.Logger) (api.Writer, error) {
	return jsonwriter.New(jsonwriter.Config{FilePath: s.OutputFile}, logger)
}

type sheetsPlugin struct{}

func (sheetsPlugin) Name() string { return config.OutputSheets }

func (sheetsPlugin) Description() string { return "Append items to a Google Sheet" }

func (sheetsPlugin) RequiredScopes() []string { return []string{sheetswriter.Scope} }

func (sheetsPlugin) ConfigKeys() []string {
	return []string{"GSHEETS_TITLE", "GSHEETS_ID", "GSHEETS_NAME"}
}

func (sheetsPlugin) NewWriter(httpClient *http.Client, s Settings, logger *slog.Logger) (api.Writer, error) {
	if httpClient == nil {
		return nil, errNoClient
	}
	return sheetswriter.New(httpClient, sheetswriter.Config{
		SheetTitle: s.GSheetsTitle,
		SheetID:    s.GSheetsID,
		SheetName:  s.GSheetsName,
	}, logger)
}
