package gmail

import "testing"

func TestQueryString(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{name: "empty", query: Query{}, want: ""},
		{name: "sender only", query: Query{From: "alerts@hdfcbank.net"}, want: "from:alerts@hdfcbank.net"},
		{
			name:  "one subject",
			query: Query{From: "alerts@hdfcbank.net", Subjects: []string{"You have done a UPI txn"}},
			want:  `from:alerts@hdfcbank.net subject:"You have done a UPI txn"`,
		},
		{
			name:  "several subjects",
			query: Query{Subjects: []string{"UPI txn", "Debit alert"}},
			want:  `(subject:"UPI txn" OR subject:"Debit alert")`,
		},
		{
			name:  "blank subjects dropped",
			query: Query{Subjects: []string{" ", "UPI txn", ""}},
			want:  `subject:"UPI txn"`,
		},
		{
			name:  "date bounds",
			query: Query{From: "a@b.c", After: "2025/01/01", Before: "2025/02/01"},
			want:  "from:a@b.c after:2025/01/01 before:2025/02/01",
		},
		{
			name:  "max results not in expression",
			query: Query{From: "a@b.c", MaxResults: 10},
			want:  "from:a@b.c",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.query.String(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestQueryEncode(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{name: "empty", query: Query{}, want: ""},
		{name: "max results only", query: Query{MaxResults: 10}, want: "maxResults=10"},
		{name: "sender and limit", query: Query{From: "a@b.c", MaxResults: 5}, want: "q=from%3Aa%40b.c&maxResults=5"},
		{name: "subject", query: Query{Subjects: []string{"UPI txn"}}, want: "q=subject%3A%22UPI+txn%22"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.query.Encode(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
