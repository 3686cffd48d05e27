package client

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultCallbackPort is the port for the local OAuth callback server.
	DefaultCallbackPort = 8085
	callbackPath        = "/callback"
	// consentTimeout bounds how long Authorize waits for the browser.
	consentTimeout = 5 * time.Minute
)

// Authorize runs the browser consent flow with a loopback redirect and
// saves the resulting token to cfg.TokenFile. Instructions are printed to
// stdout.
func Authorize(ctx context.Context, cfg Config, logger *slog.Logger) (*oauth2.Token, error) {
	return authorize(ctx, cfg, os.Stdout, logger)
}

func authorize(ctx context.Context, cfg Config, out io.Writer, logger *slog.Logger) (*oauth2.Token, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CallbackPort == 0 {
		cfg.CallbackPort = DefaultCallbackPort
	}

	oc, err := cfg.oauth2()
	if err != nil {
		return nil, err
	}
	oc.RedirectURL = "http://localhost:" + strconv.Itoa(cfg.CallbackPort) + callbackPath

	lb := newLoopback()
	stop, err := lb.listen(ctx, cfg.CallbackPort, logger)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}
	defer stop()

	authURL := oc.AuthCodeURL(lb.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "\nOpening browser for Google authentication...\n")
	fmt.Fprintf(out, "If the browser doesn't open automatically, visit this URL:\n%s\n\n", authURL)
	if err := openBrowser(ctx, authURL); err != nil {
		logger.Warn("failed to open browser automatically", "error", err)
	}

	code, err := lb.wait(ctx, consentTimeout)
	if err != nil {
		return nil, err
	}
	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code for token: %w", err)
	}
	if err := SaveToken(cfg.TokenFile, tok); err != nil {
		return nil, err
	}

	fmt.Fprintln(out, "Authentication successful!")
	logger.Info("saved credential file", "path", cfg.TokenFile)
	return tok, nil
}

// loopback receives the consent redirect. The first outcome wins.
type loopback struct {
	state  string
	result chan callbackResult
}

type callbackResult struct {
	code string
	err  error
}

func newLoopback() *loopback {
	return &loopback{
		state:  rand.Text(),
		result: make(chan callbackResult, 1),
	}
}

func (l *loopback) deliver(res callbackResult) {
	select {
	case l.result <- res:
	default:
	}
}

var successPage = template.Must(template.New("ok").Parse(`<!DOCTYPE html>
<html>
<head><title>Authentication Successful</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh;">
<h1>{{.}} is authorized</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`))

func (l *loopback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var err error
	switch {
	case q.Get("state") != l.state:
		err = errors.New("invalid state parameter")
	case q.Get("error") != "":
		err = fmt.Errorf("%s: %s", q.Get("error"), q.Get("error_description"))
	case q.Get("code") == "":
		err = errors.New("no authorization code received")
	}
	if err != nil {
		l.deliver(callbackResult{err: err})
		http.Error(w, "Authentication failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := successPage.Execute(w, "mailtxn"); err != nil {
		l.deliver(callbackResult{err: err})
		return
	}
	l.deliver(callbackResult{code: q.Get("code")})
}

// listen serves the callback on localhost:port until the returned stop
// function is called.
func (l *loopback) listen(ctx context.Context, port int, logger *slog.Logger) (func(), error) {
	mux := http.NewServeMux()
	mux.Handle(callbackPath, l)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort("localhost", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("port %d unavailable: %w", port, err)
	}

	go func() {
		logger.Debug("starting OAuth callback server", "port", port)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.deliver(callbackResult{err: err})
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("error shutting down callback server", "error", err)
		}
	}, nil
}

func (l *loopback) wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-l.result:
		if res.err != nil {
			return "", fmt.Errorf("oauth callback error: %w", res.err)
		}
		return res.code, nil
	case <-timer.C:
		return "", fmt.Errorf("oauth flow timed out after %v", timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

var browserCommands = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

func openBrowser(ctx context.Context, url string) error {
	argv, ok := browserCommands[runtime.GOOS]
	if !ok {
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return exec.CommandContext(ctx, argv[0], append(argv[1:], url)...).Start()
}
