package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ArionMiles/mailtxn/pkg/api"
)

// Matcher is a narrow, high-confidence extractor for one known alert template.
type Matcher interface {
	// Name identifies the template, e.g. "upi_debit".
	Name() string
	// Match returns the record for msg, or false if the template does not apply.
	Match(msg *api.RawMessage) (*api.TransactionRecord, bool)
}

// Capture group names understood by template matchers.
const (
	groupAmount    = "amount"
	groupAccount   = "account"
	groupVPA       = "vpa"
	groupMerchant  = "merchant"
	groupDate      = "date"
	groupReference = "reference"
)

// templateMatcher maps the named groups of one regular expression onto a record.
type templateMatcher struct {
	name   string
	typ    api.TransactionType
	re     *regexp.Regexp
	groups map[string]int
}

// NewTemplateMatcher compiles pattern into a Matcher emitting records of type
// typ. Named groups amount, account, vpa, merchant, date and reference are
// copied into the record; amount is required. \s and \S in pattern also
// cover Unicode spaces such as U+00A0.
func NewTemplateMatcher(name string, typ api.TransactionType, pattern string) (Matcher, error) {
	re, err := regexp.Compile(expandSpace(pattern))
	if err != nil {
		return nil, fmt.Errorf("compiling %s pattern: %w", name, err)
	}

	groups := make(map[string]int)
	for i, n := range re.SubexpNames() {
		if n != "" {
			groups[n] = i
		}
	}
	if _, ok := groups[groupAmount]; !ok {
		return nil, fmt.Errorf("%s pattern: missing %q group", name, groupAmount)
	}

	return &templateMatcher{name: name, typ: typ, re: re, groups: groups}, nil
}

func mustTemplate(name string, typ api.TransactionType, pattern string) Matcher {
	m, err := NewTemplateMatcher(name, typ, pattern)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *templateMatcher) Name() string { return m.name }

func (m *templateMatcher) Match(msg *api.RawMessage) (*api.TransactionRecord, bool) {
	if msg == nil {
		return nil, false
	}

	match := m.re.FindStringSubmatch(msg.Snippet)
	if match == nil {
		return nil, false
	}

	group := func(name string) string {
		if i, ok := m.groups[name]; ok {
			return match[i]
		}
		return ""
	}

	return &api.TransactionRecord{
		ID:            msg.ID,
		Type:          m.typ,
		Amount:        api.FormatAmount(group(groupAmount)),
		AccountNumber: group(groupAccount),
		VPAID:         group(groupVPA),
		Merchant:      strings.TrimSpace(group(groupMerchant)),
		Date:          group(groupDate),
		Reference:     group(groupReference),
	}, true
}

// Patterns for the HDFC alert templates. The amount prefix may be "Rs.", "Rs"
// or "INR"; the amount is always emitted as "Rs. <digits>".
// Account numbers may be masked ("XX4321", "**4321"); only the digits are kept.
const (
	amountPrefixPattern = `(?:Rs\.?|INR)\s*(?P<amount>[\d,]+(?:\.\d+)?)\s+`
	refPhrasePattern    = `(?:transaction reference number is|reference number is)`

	upiDebitPattern = `(?i)` + amountPrefixPattern +
		`has been debited from account\s+(?:[Xx*]+)?(?P<account>\d+)\s+` +
		`to VPA\s+(?P<vpa>\S+)\s+(?P<merchant>.+?)\s+on\s+(?P<date>\d{2}-\d{2}-\d{2})` +
		`.*?` + refPhrasePattern + `\s+(?P<reference>\d+)`

	upiCreditPattern = `(?i)` + amountPrefixPattern +
		`(?:has been\s+|is successfully\s+|is\s+)?credited to your account\s+(?:[Xx*]+)?(?P<account>\d+)\s+` +
		`(?:from|by)\s+VPA\s+(?P<vpa>\S+)\s+(?P<merchant>.+?)\s+on\s+(?P<date>\d{2}-\d{2}-\d{2})` +
		`.*?` + refPhrasePattern + `\s+(?P<reference>\d+)`

	cardDebitPattern = `(?i)` + amountPrefixPattern +
		`has been debited from your account\s+(?:[Xx*]+)?(?P<account>\d+)\s+` +
		`for card transaction at\s+(?P<merchant>.+?)\s+on\s+(?P<date>\d{2}-\d{2}-\d{2})` +
		`.*?reference\D*?(?P<reference>\d+)`
)

var defaultMatchers = []Matcher{
	mustTemplate("upi_debit", api.TypeUPIDebit, upiDebitPattern),
	mustTemplate("upi_credit", api.TypeUPICredit, upiCreditPattern),
	mustTemplate("card_debit", api.TypeCardDebit, cardDebitPattern),
}

// DefaultMatchers returns the built-in templates in evaluation order:
// UPI debit, UPI credit, card debit. The first one to match wins.
func DefaultMatchers() []Matcher {
	return append([]Matcher(nil), defaultMatchers...)
}
