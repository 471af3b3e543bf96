package profile

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"github.com/maqua/member-lookup/internal/record"
)

// paywayLabels maps the gateway's numeric payway codes to display labels.
var paywayLabels = map[int]string{
	0:  "未設定",
	1:  "現金",
	2:  "銀行轉帳",
	3:  "支票",
	4:  "信用卡",
	5:  "月費",
	6:  "自動扣款",
	90: "銀行轉帳",
	97: "信用卡",
	98: "信用卡",
	99: "信用卡分期",
}

// paymentKeywords maps free-text markers to payment labels. Scan order
// matters: 分期 must match before 信用卡, and the specific transfer variants
// before the generic ones.
var paymentKeywords = []struct {
	needle string
	label  string
}{
	{"分期", "信用卡分期"},
	{"信用卡", "信用卡"},
	{"現金", "現金"},
	{"轉帳", "銀行轉帳"},
	{"轉賬", "銀行轉帳"},
	{"轉帐", "銀行轉帳"},
	{"轉款", "銀行轉帳"},
	{"匯款", "銀行匯款"},
	{"匯數", "銀行轉帳"},
	{"支票", "支票"},
	{"扣款", "自動扣款"},
	{"自動轉賬", "自動扣款"},
	{"銀行扣賬", "自動扣款"},
}

var parentheticalRe = regexp.MustCompile(`\(([^)]+)\)`)

// DetectPaymentMethod finds the customer's payment method. Free-text notes
// win over the structured payway code because staff record overrides there.
func DetectPaymentMethod(detail record.Record, followInfo map[string]string) string {
	texts := []string{
		followInfo["付款方式"],
		followInfo["付費方式"],
		followInfo["目前付費方式"],
		followInfo["月費"],
		followInfo["金額"],
		followInfo["__raw__"],
	}
	for _, key := range sortedKeys(followInfo) {
		texts = append(texts, followInfo[key])
	}
	if label := paymentFromTexts(texts); label != "" {
		return label
	}

	if detail == nil {
		return ""
	}
	merchant, _ := record.AsRecord(detail.Get("merchantAppliedDetail"))
	candidates := []any{
		detail.Get("paymentMethod"),
		detail.Get("payway"),
	}
	if merchant != nil {
		candidates = append(candidates, merchant.Get("paymentMethod"), merchant.Get("payway"))
	}
	for _, source := range candidates {
		if label := labelForPayway(source); label != "" {
			return label
		}
	}
	return ""
}

// labelForPayway maps a numeric or textual payway value to its label. A
// non-numeric string passes through as-is; an unmapped code keeps its digits.
func labelForPayway(v any) string {
	text := record.CleanText(v)
	if text == "" {
		return ""
	}
	code, err := strconv.Atoi(text)
	if err != nil {
		return text
	}
	if label, ok := paywayLabels[code]; ok {
		return label
	}
	return strconv.Itoa(code)
}

func paymentFromTexts(texts []string) string {
	for _, text := range texts {
		if label := paymentFromText(text); label != "" {
			return label
		}
	}
	return ""
}

// paymentFromText scans one note for a payment keyword, then retries inside
// a parenthesized clause. Fullwidth punctuation is narrowed first so（現金）
// matches like (現金).
func paymentFromText(text string) string {
	normalized := strings.TrimSpace(width.Narrow.String(text))
	if normalized == "" {
		return ""
	}
	for _, kw := range paymentKeywords {
		if strings.Contains(normalized, kw.needle) {
			return kw.label
		}
	}
	if m := parentheticalRe.FindStringSubmatch(normalized); m != nil {
		inner := strings.TrimSpace(m[1])
		if inner != "" {
			for _, kw := range paymentKeywords {
				if strings.Contains(inner, kw.needle) {
					return kw.label
				}
			}
			return inner
		}
	}
	return ""
}
