package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ArionMiles/mailtxn/pkg/api"
	"github.com/ArionMiles/mailtxn/pkg/logging"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"18f2a9c0d1", "18f2a9c0d1"},
		{"abc123@hdfcbank.net", "abc123_hdfcbank.net"},
		{"<a/b>", "a_b"},
		{"::", "message"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := sanitizeFilename(tc.in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDump(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dump")
	logger := logging.Discard()
	msgs := []*api.RawMessage{
		{ID: "m1", Snippet: "Rs. 10 paid", InternalDate: "1752537600000"},
		{ID: "m2", Snippet: "OTP is 1234"},
	}

	n, err := dump(dir, msgs, logger)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if n != 2 {
		t.Errorf("got %d written, want 2", n)
	}

	data, err := os.ReadFile(filepath.Join(dir, "m1.json"))
	if err != nil {
		t.Fatalf("reading dump: %v", err)
	}
	var got api.RawMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decoding dump: %v", err)
	}
	if got != *msgs[0] {
		t.Errorf("got %+v, want %+v", got, *msgs[0])
	}

	n, err = dump(dir, msgs, logger)
	if err != nil {
		t.Fatalf("second dump: %v", err)
	}
	if n != 0 {
		t.Errorf("second dump: got %d written, want 0", n)
	}
}
