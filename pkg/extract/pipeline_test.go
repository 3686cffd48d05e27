package extract

import (
	"testing"
	"time"

	"github.com/ArionMiles/mailtxn/pkg/api"
)

const (
	upiDebitSnippet = "Rs.500.00 has been debited from account 1234 to VPA merchant@upi Some Merchant Store on 15-07-25. Your transaction reference number is 987654"
	otpSnippet      = "OTP is 482910 for your transaction"
	bareCredit      = "Rs. 1200 credited to your account"
)

func TestExtractTransactions(t *testing.T) {
	msgs := []*api.RawMessage{
		{ID: "a", Snippet: upiDebitSnippet},
		{ID: "b", Snippet: otpSnippet},
		{ID: "c", Snippet: bareCredit, InternalDate: "1752537600000"},
	}

	items := New(WithLocation(time.UTC)).Extract(msgs)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	rec, ok := items[0].(*api.TransactionRecord)
	if !ok {
		t.Fatalf("item 0: got %T, want *api.TransactionRecord", items[0])
	}
	want := api.TransactionRecord{
		ID:            "a",
		Type:          api.TypeUPIDebit,
		Amount:        "Rs. 500.00",
		AccountNumber: "1234",
		VPAID:         "merchant@upi",
		Merchant:      "Some Merchant Store",
		Date:          "15-07-25",
		Reference:     "987654",
	}
	if *rec != want {
		t.Errorf("item 0: got %+v, want %+v", *rec, want)
	}

	un, ok := items[1].(*api.UnparsedRecord)
	if !ok {
		t.Fatalf("item 1: got %T, want *api.UnparsedRecord", items[1])
	}
	if un.ID != "c" {
		t.Errorf("unparsed id: got %q, want %q", un.ID, "c")
	}
	if un.Snippet != bareCredit {
		t.Errorf("unparsed snippet: got %q, want %q", un.Snippet, bareCredit)
	}
	if un.Date != "7/15/2025" {
		t.Errorf("unparsed date: got %q, want %q", un.Date, "7/15/2025")
	}
	if un.Raw != msgs[2] {
		t.Error("unparsed raw should be the source message")
	}

	for _, it := range items {
		if it.MessageID() == "b" {
			t.Error("filtered message must not appear in output")
		}
	}
}

func TestExtractNilAndEmpty(t *testing.T) {
	for name, msgs := range map[string][]*api.RawMessage{
		"nil batch":   nil,
		"empty batch": {},
		"only noise":  {nil, {ID: "e"}, {ID: "o", Snippet: otpSnippet}},
	} {
		t.Run(name, func(t *testing.T) {
			got := ExtractTransactions(msgs)
			if got == nil {
				t.Fatal("got nil, want empty slice")
			}
			if len(got) != 0 {
				t.Errorf("got %d items, want 0", len(got))
			}
		})
	}
}

func TestExtractPreservesOrder(t *testing.T) {
	msgs := []*api.RawMessage{
		{ID: "1", Snippet: bareCredit},
		{ID: "2", Snippet: upiDebitSnippet},
		{ID: "3", Snippet: otpSnippet},
		{ID: "4", Snippet: "Rs. 75 paid on 02/02/2025"},
		{ID: "5", Snippet: "Hello there"},
	}

	items := ExtractTransactions(msgs)
	want := []string{"1", "2", "4", "5"}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, it := range items {
		if it.MessageID() != want[i] {
			t.Errorf("item %d: got %q, want %q", i, it.MessageID(), want[i])
		}
	}
}

func TestExtractIdempotent(t *testing.T) {
	msgs := []*api.RawMessage{
		{ID: "a", Snippet: upiDebitSnippet},
		{ID: "b", Snippet: "Rs. 75 paid on 02/02/2025"},
		{ID: "c", Snippet: bareCredit},
	}

	p := New(WithLocation(time.UTC))
	first := p.Extract(msgs)
	second := p.Extract(msgs)
	if len(first) != len(second) {
		t.Fatalf("got %d then %d items", len(first), len(second))
	}
	for i := range first {
		if api.ToRow(first[i]) != api.ToRow(second[i]) {
			t.Errorf("item %d: got %+v then %+v", i, api.ToRow(first[i]), api.ToRow(second[i]))
		}
	}
}

type stubMatcher struct {
	name string
	typ  api.TransactionType
}

func (s stubMatcher) Name() string { return s.name }

func (s stubMatcher) Match(msg *api.RawMessage) (*api.TransactionRecord, bool) {
	return &api.TransactionRecord{ID: msg.ID, Type: s.typ, Amount: "Rs. 1"}, true
}

func TestMatcherPrecedence(t *testing.T) {
	msg := &api.RawMessage{ID: "p", Snippet: upiDebitSnippet}

	t.Run("specific before generic", func(t *testing.T) {
		item, ok := Default().ExtractOne(msg)
		if !ok {
			t.Fatal("got filtered")
		}
		if got := item.(*api.TransactionRecord).Type; got != api.TypeUPIDebit {
			t.Errorf("got %q, want %q", got, api.TypeUPIDebit)
		}
	})

	t.Run("generic without matchers", func(t *testing.T) {
		item, ok := New(WithMatchers()).ExtractOne(msg)
		if !ok {
			t.Fatal("got filtered")
		}
		if got := item.(*api.TransactionRecord).Type; got != api.TypeDebit {
			t.Errorf("got %q, want %q", got, api.TypeDebit)
		}
	})

	t.Run("first matcher wins", func(t *testing.T) {
		p := New(WithMatchers(
			stubMatcher{name: "one", typ: api.TypeCredit},
			stubMatcher{name: "two", typ: api.TypeDebit},
		))
		item, _ := p.ExtractOne(msg)
		if got := item.(*api.TransactionRecord).Type; got != api.TypeCredit {
			t.Errorf("got %q, want %q", got, api.TypeCredit)
		}
	})

	t.Run("filter before matchers", func(t *testing.T) {
		p := New(WithMatchers(stubMatcher{name: "all", typ: api.TypeDebit}))
		if _, ok := p.ExtractOne(&api.RawMessage{ID: "o", Snippet: otpSnippet}); ok {
			t.Error("got item, want filtered")
		}
	})

	t.Run("generic disabled", func(t *testing.T) {
		item, ok := New(WithMatchers(), WithGeneric(nil)).ExtractOne(msg)
		if !ok {
			t.Fatal("got filtered")
		}
		if _, isUnparsed := item.(*api.UnparsedRecord); !isUnparsed {
			t.Errorf("got %T, want *api.UnparsedRecord", item)
		}
	})
}

func TestUnparsedDate(t *testing.T) {
	tests := []struct {
		name         string
		internalDate string
		want         string
	}{
		{name: "empty", internalDate: "", want: api.UnknownDate},
		{name: "not numeric", internalDate: "yesterday", want: api.UnknownDate},
		{name: "epoch millis", internalDate: "1752537600000", want: "7/15/2025"},
		{name: "single digit month", internalDate: "1704067200000", want: "1/1/2024"},
	}

	p := New(WithLocation(time.UTC))
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			item, ok := p.ExtractOne(&api.RawMessage{ID: "u", Snippet: "Hello there", InternalDate: tc.internalDate})
			if !ok {
				t.Fatal("got filtered")
			}
			if got := item.(*api.UnparsedRecord).Date; got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
