package extract

import (
	"regexp"
	"strings"

	"github.com/ArionMiles/mailtxn/pkg/api"
)

// NoiseSignatures match lower-cased snippets of messages that never carry a
// transaction: one-time passwords, security codes and the HDFC newsletter
// greeting.
var NoiseSignatures = []*regexp.Regexp{
	regexp.MustCompile(`^otp is `),
	regexp.MustCompile(`dear customer, greetings from hdfc bank!`),
	regexp.MustCompile(`one time password`),
	regexp.MustCompile(`verification code`),
	regexp.MustCompile(`security code`),
}

// Filter decides whether a message is noise and should be dropped before
// extraction.
type Filter struct {
	signatures []*regexp.Regexp
}

// NewFilter returns a filter over the given signatures. Signatures are
// matched against the lower-cased snippet.
func NewFilter(signatures ...*regexp.Regexp) *Filter {
	return &Filter{signatures: signatures}
}

var defaultFilter = NewFilter(NoiseSignatures...)

// ShouldFilterOut reports whether msg must be dropped.
//
// A nil message or one without a snippet is always dropped: there is nothing
// to extract and nothing worth showing.
func (f *Filter) ShouldFilterOut(msg *api.RawMessage) bool {
	if msg == nil || msg.Snippet == "" {
		return true
	}

	snippet := strings.ToLower(msg.Snippet)
	for _, sig := range f.signatures {
		if sig.MatchString(snippet) {
			return true
		}
	}
	return false
}

// ShouldFilterOut applies the default noise signatures to msg.
func ShouldFilterOut(msg *api.RawMessage) bool {
	return defaultFilter.ShouldFilterOut(msg)
}
