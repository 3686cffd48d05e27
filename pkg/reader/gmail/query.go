package gmail

import (
	"net/url"
	"strconv"
	"strings"
)

// Query selects which messages the reader fetches.
type Query struct {
	// From restricts results to one sender address.
	From string `koanf:"from"`
	// Subjects restricts results to any of these subjects.
	Subjects []string `koanf:"subjects"`
	// After and Before bound the search, in Gmail's YYYY/MM/DD form.
	After  string `koanf:"after"`
	Before string `koanf:"before"`
	// MaxResults caps the number of messages listed. Zero uses the API default.
	MaxResults int64 `koanf:"max_results"`
}

// String returns the Gmail search expression for q. Empty fields are omitted.
func (q Query) String() string {
	var terms []string
	if q.From != "" {
		terms = append(terms, "from:"+q.From)
	}

	var subjects []string
	for _, s := range q.Subjects {
		if s = strings.TrimSpace(s); s != "" {
			subjects = append(subjects, `subject:"`+s+`"`)
		}
	}
	switch len(subjects) {
	case 0:
	case 1:
		terms = append(terms, subjects[0])
	default:
		terms = append(terms, "("+strings.Join(subjects, " OR ")+")")
	}

	if q.After != "" {
		terms = append(terms, "after:"+q.After)
	}
	if q.Before != "" {
		terms = append(terms, "before:"+q.Before)
	}
	return strings.Join(terms, " ")
}

// Encode returns q as REST query parameters, "q=...&maxResults=N".
// It returns an empty string when nothing is set.
func (q Query) Encode() string {
	var params []string
	if s := q.String(); s != "" {
		params = append(params, "q="+url.QueryEscape(s))
	}
	if q.MaxResults > 0 {
		params = append(params, "maxResults="+strconv.FormatInt(q.MaxResults, 10))
	}
	return strings.Join(params, "&")
}
