// Package resolve narrows a raw follow-up result set down to exactly one
// customer code. Codes hide in many places: direct fields, nested customer
// objects, tokens embedded in display names, and the customer-detail record,
// which is fetched on demand and cached for the lifetime of one lookup.
package resolve

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/maqua/member-lookup/internal/identify"
	"github.com/maqua/member-lookup/internal/record"
	"github.com/maqua/member-lookup/pkg/yonbip"
)

var (
	// codeTokenRe finds canonical C-prefixed codes embedded in names.
	codeTokenRe = regexp.MustCompile(`\bC\d{2,}\b`)
	// identityCodeRe is looser: suggestion building accepts short C-codes too.
	identityCodeRe = regexp.MustCompile(`\bC\d+`)
)

// Suggestion is one disambiguation candidate offered to the caller when a
// query matches several customers.
type Suggestion struct {
	Code  string `json:"code"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type cacheKey struct {
	customerID string
	orgID      string
}

// Resolver resolves customer codes for one lookup. It owns the request-scoped
// detail cache; never share a Resolver across lookups.
type Resolver struct {
	client yonbip.Client
	cache  map[cacheKey]record.Record
}

// New creates a Resolver with a fresh detail cache.
func New(client yonbip.Client) *Resolver {
	return &Resolver{
		client: client,
		cache:  make(map[cacheKey]record.Record),
	}
}

// Detail fetches the customer-detail record for (customerID, orgID), caching
// the result. Failures are logged and cached as empty so a broken pair is
// only attempted once per lookup.
func (r *Resolver) Detail(ctx context.Context, customerID, orgID string) record.Record {
	if customerID == "" {
		return nil
	}
	key := cacheKey{customerID: customerID, orgID: orgID}
	if cached, ok := r.cache[key]; ok {
		return cached
	}

	var detail record.Record
	if orgID == "" {
		detail = record.Record{}
	} else {
		data, err := r.client.GetCustomerDetail(ctx, customerID, orgID)
		if err != nil {
			zap.L().Warn("customer detail fetch failed",
				zap.String("customer_id", customerID),
				zap.String("org_id", orgID),
				zap.Error(err),
			)
		}
		detail = record.Record(data)
		if detail == nil {
			detail = record.Record{}
		}
	}
	r.cache[key] = detail
	return detail
}

// DetailForRecord fetches the detail record referenced by a follow-up
// record's customer/org fields.
func (r *Resolver) DetailForRecord(ctx context.Context, rec record.Record) record.Record {
	customerID := record.CleanText(rec.Get("customer"))
	orgID := record.CleanText(rec.Get("org"))
	return r.Detail(ctx, customerID, orgID)
}

// detailCode returns the uppercased code field of the record's customer
// detail, or "".
func (r *Resolver) detailCode(ctx context.Context, rec record.Record) string {
	detail := r.DetailForRecord(ctx, rec)
	return identify.NormalizeCode(record.CleanText(detail.Get("code")))
}

// MatchesCode reports whether a follow-up record belongs to the expected
// customer code through any of the recognized code sources.
func (r *Resolver) MatchesCode(ctx context.Context, rec record.Record, expectedCode string) bool {
	expected := identify.NormalizeCode(expectedCode)
	if expected == "" {
		return false
	}

	for _, key := range []string{"customer_code", "customerCode"} {
		if val := record.CleanText(rec.Get(key)); val != "" && strings.EqualFold(val, expected) {
			return true
		}
	}

	// A customer field holding a code string directly (not a numeric id).
	if cust, ok := rec.Get("customer").(string); ok {
		val := identify.NormalizeCode(cust)
		if val == expected && hasAlpha(val) {
			return true
		}
	}

	if nested := record.CleanText(rec.Nested("customer.code")); nested != "" && strings.EqualFold(nested, expected) {
		return true
	}

	for _, key := range []string{"customer_name", "customer.name", "customerName"} {
		name := record.CleanText(rec.Lookup(key))
		if name == "" {
			continue
		}
		if token := codeTokenRe.FindString(strings.ToUpper(name)); token == expected {
			return true
		}
	}

	if code := r.detailCode(ctx, rec); code != "" && code == expected {
		return true
	}
	return false
}

// CandidateCodes collects every discoverable code for a record, uppercased
// and deduplicated preserving order.
func (r *Resolver) CandidateCodes(ctx context.Context, rec record.Record) []string {
	var codes []string
	for _, key := range []string{"customer_code", "customerCode"} {
		if val := record.CleanText(rec.Get(key)); val != "" {
			codes = append(codes, identify.NormalizeCode(val))
		}
	}

	name := record.FirstNonEmpty(rec.Get("customer_name"), rec.Nested("customer.name"), rec.Get("customerName"))
	if name != "" {
		if token := codeTokenRe.FindString(strings.ToUpper(name)); token != "" {
			codes = append(codes, token)
		}
	}

	if code := r.detailCode(ctx, rec); code != "" {
		codes = append(codes, code)
	}

	seen := make(map[string]bool, len(codes))
	var out []string
	for _, code := range codes {
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

// FilterForCode keeps only records belonging to the expected code.
//
// Resolution order: records matching the expected code directly; else an
// exact hit in the candidate-code multimap; else prefix matches returned as
// suggestions with no records (the caller should ask for the full code);
// else a single distinct candidate code accepted as resolved; else every
// distinct code returned as suggestions.
func (r *Resolver) FilterForCode(ctx context.Context, records []record.Record, expectedCode string) ([]record.Record, string, []string) {
	expected := identify.NormalizeCode(expectedCode)
	if expected == "" {
		return records, "", nil
	}

	var exact []record.Record
	for _, rec := range records {
		if r.MatchesCode(ctx, rec, expected) {
			exact = append(exact, rec)
		}
	}
	if len(exact) > 0 {
		return exact, expected, nil
	}

	codeToRecords := make(map[string][]record.Record)
	for _, rec := range records {
		for _, code := range r.CandidateCodes(ctx, rec) {
			codeToRecords[code] = append(codeToRecords[code], rec)
		}
	}

	if matched, ok := codeToRecords[expected]; ok {
		return matched, expected, nil
	}

	var prefixes []string
	for code := range codeToRecords {
		if strings.HasPrefix(code, expected) {
			prefixes = append(prefixes, code)
		}
	}
	if len(prefixes) > 0 {
		sort.Strings(prefixes)
		return nil, "", prefixes
	}

	if len(codeToRecords) == 1 {
		for code, matched := range codeToRecords {
			return matched, code, nil
		}
	}

	suggestions := make([]string, 0, len(codeToRecords))
	for code := range codeToRecords {
		suggestions = append(suggestions, code)
	}
	sort.Strings(suggestions)
	return nil, "", suggestions
}

// Identity extracts the (code, name, phone) triple used for disambiguation
// suggestions. A missing code falls back to a C-token embedded in the name.
func Identity(rec record.Record) (code, name, phone string) {
	code = record.FirstNonEmpty(rec.Get("customer_code"), rec.Get("customerCode"))
	if code == "" {
		code = record.CleanText(rec.Nested("customer.code"))
	}
	name = record.FirstNonEmpty(rec.Get("customer_name"), rec.Nested("customer.name"), rec.Get("customerName"))
	if code == "" && name != "" {
		code = identityCodeRe.FindString(strings.ToUpper(name))
	}
	phone = record.FirstNonEmpty(
		rec.Get("contactMobile"),
		rec.Get("contactTel"),
		rec.Nested("customer.contactMobile"),
		rec.Nested("customer.mobile"),
	)
	return code, name, phone
}

// BuildSuggestions converts a record set into disambiguation suggestions,
// deduplicated by uppercase code. Records without any code are skipped.
func BuildSuggestions(records []record.Record) []Suggestion {
	var suggestions []Suggestion
	seen := make(map[string]bool)
	for _, rec := range records {
		code, name, phone := Identity(rec)
		if code == "" {
			continue
		}
		normalized := identify.NormalizeCode(code)
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		suggestions = append(suggestions, Suggestion{Code: normalized, Name: name, Phone: phone})
	}
	return suggestions
}

func hasAlpha(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
