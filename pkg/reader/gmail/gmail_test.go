package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const messagesPath = "/gmail/v1/users/me/messages"

// fakeGmail serves a list of message ids and per-id message bodies.
// Ids present in status are answered with that HTTP status instead.
type fakeGmail struct {
	ids      []string
	messages map[string]string
	status   map[string]int

	mu       sync.Mutex
	gotQuery string
	gotMax   string
}

func (f *fakeGmail) listParams() (q, maxResults string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gotQuery, f.gotMax
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == messagesPath {
		f.mu.Lock()
		f.gotQuery = r.URL.Query().Get("q")
		f.gotMax = r.URL.Query().Get("maxResults")
		f.mu.Unlock()

		refs := make([]string, 0, len(f.ids))
		for _, id := range f.ids {
			refs = append(refs, fmt.Sprintf(`{"id":%q}`, id))
		}
		fmt.Fprintf(w, `{"messages":[%s]}`, strings.Join(refs, ","))
		return
	}

	id := strings.TrimPrefix(r.URL.Path, messagesPath+"/")
	if code, ok := f.status[id]; ok {
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"error":{"code":%d,"message":"failed"}}`, code)
		return
	}
	body, ok := f.messages[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"not found"}}`)
		return
	}
	fmt.Fprint(w, body)
}

func newTestReader(t *testing.T, fake *fakeGmail, cfg Config) *Reader {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	r, err := New(srv.Client(), cfg, nil, option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestRead(t *testing.T) {
	fake := &fakeGmail{
		ids: []string{"m1", "m2", "m3"},
		messages: map[string]string{
			"m1": `{"id":"m1","snippet":"Rs.500 paid to A&amp;B on 01/02/2025","internalDate":"1752537600000"}`,
			"m3": `{"id":"m3","snippet":"OTP is 1234"}`,
		},
	}
	r := newTestReader(t, fake, Config{Query: Query{From: "alerts@hdfcbank.net", MaxResults: 25}})

	msgs, err := r.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	gotQuery, gotMax := fake.listParams()
	if gotQuery != "from:alerts@hdfcbank.net" {
		t.Errorf("query: got %q, want %q", gotQuery, "from:alerts@hdfcbank.net")
	}
	if gotMax != "25" {
		t.Errorf("maxResults: got %q, want %q", gotMax, "25")
	}

	// m2 is missing and must be skipped.
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m3" {
		t.Errorf("ids: got %q, %q, want m1, m3", msgs[0].ID, msgs[1].ID)
	}
	if want := "Rs.500 paid to A&B on 01/02/2025"; msgs[0].Snippet != want {
		t.Errorf("snippet: got %q, want %q", msgs[0].Snippet, want)
	}
	if msgs[0].InternalDate != "1752537600000" {
		t.Errorf("internalDate: got %q, want %q", msgs[0].InternalDate, "1752537600000")
	}
	if msgs[1].InternalDate != "" {
		t.Errorf("internalDate: got %q, want empty", msgs[1].InternalDate)
	}
}

func TestReadAuthFailure(t *testing.T) {
	fake := &fakeGmail{
		ids:      []string{"m1", "m2"},
		messages: map[string]string{"m1": `{"id":"m1","snippet":"Rs. 10 paid"}`},
		status:   map[string]int{"m2": http.StatusUnauthorized},
	}

	var calls int
	r := newTestReader(t, fake, Config{OnAuthFailure: func(error) { calls++ }})

	msgs, err := r.Read(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("got error %v, want ErrAuth", err)
	}
	if msgs != nil {
		t.Errorf("got %d messages, want none", len(msgs))
	}
	if calls != 1 {
		t.Errorf("OnAuthFailure calls: got %d, want 1", calls)
	}
}

func TestReadServerErrorIsNotAuth(t *testing.T) {
	fake := &fakeGmail{
		ids:    []string{"m1"},
		status: map[string]int{"m1": http.StatusForbidden},
	}

	called := false
	r := newTestReader(t, fake, Config{OnAuthFailure: func(error) { called = true }})

	msgs, err := r.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
	if called {
		t.Error("OnAuthFailure should not be called for a 403")
	}
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "unauthorized", err: fmt.Errorf("listing: %w", &googleapi.Error{Code: http.StatusUnauthorized}), want: true},
		{name: "forbidden", err: &googleapi.Error{Code: http.StatusForbidden}, want: false},
		{name: "refresh failure", err: fmt.Errorf("fetching: %w", &oauth2.RetrieveError{}), want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isAuthError(tc.err); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestToRawMessage(t *testing.T) {
	got := toRawMessage(&gmail.Message{
		Id:           "x1",
		Snippet:      "Rs.\u00a0250 debited &amp; settled",
		InternalDate: 1704067200000,
	})

	if got.ID != "x1" {
		t.Errorf("id: got %q, want %q", got.ID, "x1")
	}
	if want := "Rs.\u00a0250 debited & settled"; got.Snippet != want {
		t.Errorf("snippet: got %q, want %q", got.Snippet, want)
	}
	if got.InternalDate != "1704067200000" {
		t.Errorf("internalDate: got %q, want %q", got.InternalDate, "1704067200000")
	}
}
