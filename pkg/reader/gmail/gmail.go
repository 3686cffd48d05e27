// Package gmail implements a Reader that fetches transaction alert snippets
// from Gmail.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ArionMiles/mailtxn/pkg/api"
)

// ErrAuth is returned when Gmail rejects the credentials and the user has to
// authorize again.
var ErrAuth = errors.New("gmail: authorization failed")

// Scope is the OAuth scope the reader needs.
const Scope = gmail.GmailReadonlyScope

const userID = "me"

// Reader reads transaction alert snippets from Gmail messages.
type Reader struct {
	client        *gmail.Service
	query         Query
	onAuthFailure func(error)
	logger        *slog.Logger
}

// Config holds configuration for the Gmail reader.
type Config struct {
	// Query selects the messages to fetch.
	Query Query
	// OnAuthFailure is called once per Read when Gmail rejects the
	// credentials, before Read returns an error wrapping ErrAuth.
	OnAuthFailure func(error)
}

// New creates a new Gmail reader. Extra client options are passed to the
// Gmail service, e.g. to point it at another endpoint.
func New(httpClient *http.Client, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	client, err := gmail.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	return &Reader{
		client:        client,
		query:         cfg.Query,
		onAuthFailure: cfg.OnAuthFailure,
		logger:        logger.With("component", "gmail"),
	}, nil
}

// Read lists the messages matching the query and fetches each one's snippet
// and internal date, in list order. A message that fails to fetch is logged
// and skipped; a failed list or an authorization failure aborts the read.
func (r *Reader) Read(ctx context.Context) ([]*api.RawMessage, error) {
	q := r.query.String()
	logger := r.logger.With("query", q)

	call := r.client.Users.Messages.List(userID).Q(q).Context(ctx)
	if r.query.MaxResults > 0 {
		call = call.MaxResults(r.query.MaxResults)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, r.wrap(fmt.Errorf("listing messages: %w", err))
	}

	logger.Info("found messages", "count", len(resp.Messages))

	msgs := make([]*api.RawMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msg, err := r.fetch(ctx, m.Id)
		if err != nil {
			if isAuthError(err) || ctx.Err() != nil {
				return nil, r.wrap(err)
			}
			logger.Error("failed to fetch message", "message_id", m.Id, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}

	logger.Debug("fetched messages", "count", len(msgs))
	return msgs, nil
}

func (r *Reader) fetch(ctx context.Context, id string) (*api.RawMessage, error) {
	msg, err := r.client.Users.Messages.Get(userID, id).
		Format("minimal").
		Fields("id", "snippet", "internalDate").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", id, err)
	}
	return toRawMessage(msg), nil
}

// wrap marks authorization failures with ErrAuth and reports them to the
// OnAuthFailure callback. Other errors are returned unchanged.
func (r *Reader) wrap(err error) error {
	if !isAuthError(err) {
		return err
	}
	if r.onAuthFailure != nil {
		r.onAuthFailure(err)
	}
	return fmt.Errorf("%w: %w", ErrAuth, err)
}

// isAuthError reports whether err is an HTTP 401 from the API or a failed
// OAuth token refresh.
func isAuthError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return true
	}
	var rerr *oauth2.RetrieveError
	return errors.As(err, &rerr)
}

// toRawMessage decodes the HTML entities Gmail leaves in snippets and keeps
// everything else as returned.
func toRawMessage(msg *gmail.Message) *api.RawMessage {
	raw := &api.RawMessage{
		ID:      msg.Id,
		Snippet: html.UnescapeString(msg.Snippet),
	}
	if msg.InternalDate > 0 {
		raw.InternalDate = strconv.FormatInt(msg.InternalDate, 10)
	}
	return raw
}
