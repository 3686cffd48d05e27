package extract

import (
	"regexp"
	"strings"

	"github.com/ArionMiles/mailtxn/pkg/api"
)

// The field patterns below intentionally keep the quirks of the alerts they
// were tuned on: no word boundaries around "to"/"at", and "[^\.on]" excluding
// the letters o and n (in either case) rather than the word "on". \s also
// matches Unicode spaces; see expandSpace.
var (
	amountPatterns = []*regexp.Regexp{
		mustCompile(`(?i)(?:Rs\.?|Rs|INR)\s*([\d,]+\.?\d*)`),
	}

	accountPatterns = []*regexp.Regexp{
		mustCompile(`(?i)(?:account|a/c|ac)\s*(?:no\.?|number|#)?\s*(?:[Xx*]+)?(\d+)`),
		mustCompile(`(?i)(?:from|to)\s*(?:account|a/c)?\s*(?:[Xx*]+)?(\d+)`),
	}

	datePatterns = []*regexp.Regexp{
		mustCompile(`(?i)(?:on|dated)\s*(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
		mustCompile(`(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
	}

	referencePatterns = []*regexp.Regexp{
		mustCompile(`(?i)(?:ref(?:erence)?|txn|transaction).{1,15}?(?:no|num|number|id).{0,10}?(\d+)`),
		mustCompile(`(?i)(?:ref(?:erence)?|txn|transaction).{0,5}?(?:#|:).{0,5}?(\d+)`),
	}

	debitKeywords  = mustCompile(`(?i)debited|paid|sent|withdrawn|purchase|spent`)
	creditKeywords = mustCompile(`(?i)credited|received|added|deposited`)

	// merchantPatterns are tried in order. Only the first one has a second
	// group; when it matches, group 1 is the VPA and group 2 the payee name.
	merchantPatterns = []*regexp.Regexp{
		mustCompile(`(?i)(?:to|at)\s+(?:VPA\s+)?([^\s]+@[^\s]+)\s+([^\.on]{5,}?)(?:\s+on|\.|$)`),
		mustCompile(`(?i)(?:to|at)\s+(?:VPA\s+)?([^\s]+@[^\s]+)`),
		mustCompile(`(?i)(?:to|at)\s+([A-Z\s]{5,})`),
		mustCompile(`(?i)(?:to|at)\s+([^\.]{5,}?)(?:\s+on|\.|$)`),
	}

	vpaPatterns = []*regexp.Regexp{
		mustCompile(`(?i)(?:VPA|UPI\s+ID)\s+([^\s]+@[^\s]+)`),
	}

	hdfcUPIPattern = mustCompile(`(?i)debited from account (\d+) to VPA ([^\s]+) ([^on]+) on (\d{2}-\d{2}-\d{2}).*?(?:reference number is|transaction reference number is) (\d+)`)
)

// firstMatch returns the submatches of the first pattern that matches s.
func firstMatch(s string, patterns []*regexp.Regexp) []string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m
		}
	}
	return nil
}

// fieldPass fills one field (or a group of related fields) of rec.
// A pass that finds nothing leaves rec untouched.
type fieldPass struct {
	name string
	run  func(snippet string, rec *api.TransactionRecord)
}

// capturePass stores group 1 of the first matching pattern via set.
func capturePass(name string, patterns []*regexp.Regexp, set func(rec *api.TransactionRecord, v string)) fieldPass {
	return fieldPass{
		name: name,
		run: func(snippet string, rec *api.TransactionRecord) {
			if m := firstMatch(snippet, patterns); m != nil {
				set(rec, m[1])
			}
		},
	}
}

// fieldPasses run in this order; later passes may read what earlier ones set.
var fieldPasses = []fieldPass{
	capturePass("amount", amountPatterns, func(rec *api.TransactionRecord, v string) {
		rec.Amount = api.FormatAmount(v)
	}),
	capturePass("account", accountPatterns, func(rec *api.TransactionRecord, v string) {
		rec.AccountNumber = v
	}),
	capturePass("date", datePatterns, func(rec *api.TransactionRecord, v string) {
		rec.Date = v
	}),
	capturePass("reference", referencePatterns, func(rec *api.TransactionRecord, v string) {
		rec.Reference = v
	}),
	{name: "type", run: classifyType},
	{name: "merchant", run: extractMerchant},
	capturePass("vpa", vpaPatterns, func(rec *api.TransactionRecord, v string) {
		if rec.VPAID == "" {
			rec.VPAID = v
		}
	}),
}

func classifyType(snippet string, rec *api.TransactionRecord) {
	switch {
	case debitKeywords.MatchString(snippet):
		rec.Type = api.TypeDebit
	case creditKeywords.MatchString(snippet):
		rec.Type = api.TypeCredit
	}
}

func extractMerchant(snippet string, rec *api.TransactionRecord) {
	m := firstMatch(snippet, merchantPatterns)
	if m == nil {
		return
	}
	if len(m) > 2 && m[2] != "" {
		rec.VPAID = m[1]
		rec.Merchant = strings.TrimSpace(m[2])
		return
	}
	rec.Merchant = strings.TrimSpace(m[1])
}

// Refiner runs after the independent field passes and may overwrite their
// results with a more reliable composite match.
type Refiner interface {
	Refine(snippet string, rec *api.TransactionRecord) bool
}

// RefinerFunc adapts a function to the Refiner interface.
type RefinerFunc func(snippet string, rec *api.TransactionRecord) bool

// Refine calls f.
func (f RefinerFunc) Refine(snippet string, rec *api.TransactionRecord) bool {
	return f(snippet, rec)
}

// HDFCUPIRefiner overwrites type, account, VPA, merchant, date and reference
// when the snippet is an HDFC UPI debit alert.
var HDFCUPIRefiner = RefinerFunc(func(snippet string, rec *api.TransactionRecord) bool {
	m := hdfcUPIPattern.FindStringSubmatch(snippet)
	if m == nil {
		return false
	}
	rec.Type = api.TypeUPIDebit
	rec.AccountNumber = m[1]
	rec.VPAID = m[2]
	rec.Merchant = strings.TrimSpace(m[3])
	rec.Date = m[4]
	rec.Reference = m[5]
	return true
})

// Generic is the low-precision fallback extractor. It extracts every field
// independently, applies its refiners in order, and accepts the result only
// when an amount and at least one of date or reference were found.
type Generic struct {
	filter   *Filter
	refiners []Refiner
}

// NewGeneric returns a generic extractor guarded by filter. A nil filter uses
// the default noise signatures.
func NewGeneric(filter *Filter, refiners ...Refiner) *Generic {
	if filter == nil {
		filter = defaultFilter
	}
	return &Generic{filter: filter, refiners: refiners}
}

// DefaultGeneric returns the generic extractor with the HDFC UPI refiner.
func DefaultGeneric() *Generic {
	return NewGeneric(nil, HDFCUPIRefiner)
}

// Extract returns the record for msg or false when msg is noise or does not
// carry enough to be a transaction. Noise is checked here as well so direct
// callers get the same answer as the pipeline.
func (g *Generic) Extract(msg *api.RawMessage) (*api.TransactionRecord, bool) {
	if g.filter.ShouldFilterOut(msg) {
		return nil, false
	}

	rec := &api.TransactionRecord{
		ID:   msg.ID,
		Type: api.TypeUnknown,
	}
	for _, pass := range fieldPasses {
		pass.run(msg.Snippet, rec)
	}
	for _, r := range g.refiners {
		r.Refine(msg.Snippet, rec)
	}

	if !accepted(rec) {
		return nil, false
	}
	return rec, true
}

func accepted(rec *api.TransactionRecord) bool {
	return rec.Amount != "" && (rec.Date != "" || rec.Reference != "")
}

// ExtractGeneric runs the default generic extractor on msg.
func ExtractGeneric(msg *api.RawMessage) (*api.TransactionRecord, bool) {
	return defaultGeneric.Extract(msg)
}

var defaultGeneric = DefaultGeneric()
