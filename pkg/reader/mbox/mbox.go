// Package mbox implements a Reader over an mbox export, such as the one
// produced by Google Takeout. It lets the pipeline run without API access.
package mbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"regexp"
	"strconv"
	"strings"

	gombox "github.com/emersion/go-mbox"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/ArionMiles/mailtxn/pkg/api"
	"github.com/ArionMiles/mailtxn/pkg/reader/snippet"
)

// Config holds configuration for the mbox reader.
type Config struct {
	// Path is the mbox file to read.
	Path string
}

// Reader reads messages from an mbox file.
type Reader struct {
	path   string
	logger *slog.Logger
}

// New creates a new mbox reader.
func New(cfg Config, logger *slog.Logger) (*Reader, error) {
	if cfg.Path == "" {
		return nil, errors.New("mbox path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		path:   cfg.Path,
		logger: logger.With("component", "mbox", "file", cfg.Path),
	}, nil
}

// Read parses every message in the file, in file order.
func (r *Reader) Read(ctx context.Context) ([]*api.RawMessage, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("opening mbox: %w", err)
	}
	defer f.Close()

	msgs, err := ReadFrom(ctx, f, r.logger)
	if err != nil {
		return nil, err
	}
	r.logger.Info("read messages", "count", len(msgs))
	return msgs, nil
}

// ReadFrom parses an mbox stream. Messages that cannot be parsed are logged
// and skipped; they still count towards the position of later messages.
func ReadFrom(ctx context.Context, rd io.Reader, logger *slog.Logger) ([]*api.RawMessage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mr := gombox.NewReader(rd)
	var msgs []*api.RawMessage
	for pos := 1; ; pos++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := mr.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading message %d: %w", pos, err)
		}

		msg, err := parseMessage(raw, pos)
		if err != nil {
			logger.Warn("skipping message", "position", pos, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func parseMessage(r io.Reader, pos int) (*api.RawMessage, error) {
	m, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("parsing headers: %w", err)
	}

	body, err := messageText(m.Header, m.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	msg := &api.RawMessage{
		ID:      messageID(m.Header, pos),
		Snippet: snippet.FromBody(body),
	}
	if date, err := m.Header.Date(); err == nil {
		msg.InternalDate = strconv.FormatInt(date.UnixMilli(), 10)
	}
	return msg, nil
}

func messageID(h mail.Header, pos int) string {
	id := strings.TrimSpace(h.Get("Message-Id"))
	id = strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">")
	if id == "" {
		return "mbox-" + strconv.Itoa(pos)
	}
	return id
}

type header interface {
	Get(key string) string
}

// messageText returns the plain-text body, falling back to the first HTML
// part with its markup removed.
func messageText(h header, body io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return multipartText(multipart.NewReader(body, params["boundary"]))
	}

	text, err := decodePart(body, h.Get("Content-Transfer-Encoding"), params["charset"])
	if err != nil {
		return "", err
	}
	if mediaType == "text/html" {
		text = stripTags(text)
	}
	return text, nil
}

func multipartText(mr *multipart.Reader) (string, error) {
	var html string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return html, nil
		}
		if err != nil {
			return "", fmt.Errorf("reading part: %w", err)
		}

		mediaType, _, err := mime.ParseMediaType(p.Header.Get("Content-Type"))
		if err != nil {
			mediaType = "text/plain"
		}

		switch {
		case strings.HasPrefix(mediaType, "multipart/"), mediaType == "text/plain":
			text, err := messageText(p.Header, p)
			if err != nil {
				return "", err
			}
			if text != "" {
				return text, nil
			}
		case mediaType == "text/html" && html == "":
			text, err := messageText(p.Header, p)
			if err != nil {
				return "", err
			}
			html = text
		}
	}
}

func decodePart(r io.Reader, encoding, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}

	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8", "us-ascii":
	default:
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return "", fmt.Errorf("unsupported charset %q: %w", charset, err)
		}
		r = enc.NewDecoder().Reader(r)
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decoding %s body: %w", encoding, err)
	}
	return string(b), nil
}

var (
	styleBlock = regexp.MustCompile(`(?is)<(style|script)\b.*?</(style|script)>`)
	htmlTag    = regexp.MustCompile(`(?s)<[^>]*>`)
)

// stripTags removes markup, leaving entities for snippet.Clean to decode.
func stripTags(s string) string {
	s = styleBlock.ReplaceAllString(s, " ")
	return htmlTag.ReplaceAllString(s, " ")
}
