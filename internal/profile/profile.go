// Package profile builds the member profile returned by the lookup API. It
// drives the full pipeline: classify the identifier, search follow-ups,
// resolve the customer code, extract the maintenance summary, and assemble
// contract plans plus contact details into one response.
package profile

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maqua/member-lookup/internal/dates"
	"github.com/maqua/member-lookup/internal/identify"
	"github.com/maqua/member-lookup/internal/maintain"
	"github.com/maqua/member-lookup/internal/plan"
	"github.com/maqua/member-lookup/internal/record"
	"github.com/maqua/member-lookup/internal/resolve"
	"github.com/maqua/member-lookup/internal/search"
	"github.com/maqua/member-lookup/pkg/yonbip"
)

// User-facing messages (Traditional Chinese, matching the CRM's locale).
const (
	MsgEmptyInput      = "請輸入客戶編碼、電話或姓名"
	MsgAmbiguous       = "找到多個符合的客戶，請選擇客戶編碼查詢。"
	MsgNoCustomer      = "找不到符合條件的客戶資料"
	MsgNoRecords       = "找不到符合條件的紀錄"
	MsgNoMaintenance   = "找不到符合條件的保養紀錄"
	MsgCodeNotFound    = "找不到對應的客戶編碼，請輸入完整的編碼。"
	MsgUnexpectedError = "查詢時發生錯誤，請稍後再試。"
)

// nextServiceOffsetDays is the standard service interval added to the base
// date chosen from tasks or follow-up history.
const nextServiceOffsetDays = 14

// Contact is the customer's contact person.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Profile is the assembled member profile.
type Profile struct {
	Keyword           string      `json:"keyword"`
	CustomerCode      string      `json:"customerCode,omitempty"`
	CustomerName      string      `json:"customerName,omitempty"`
	LatestServiceDate string      `json:"latestServiceDate,omitempty"`
	NextServiceDate   string      `json:"nextServiceDate,omitempty"`
	ContractNumber    string      `json:"contractNumber,omitempty"`
	PaymentMethod     string      `json:"paymentMethod,omitempty"`
	Usage             string      `json:"usage,omitempty"`
	PlanType          string      `json:"planType,omitempty"`
	MonthlyFee        string      `json:"monthlyFee,omitempty"`
	Address           string      `json:"address,omitempty"`
	Contact           Contact     `json:"contact"`
	Plans             []plan.Plan `json:"plans"`
	Points            *int        `json:"points"`
	PaymentStatus     string      `json:"paymentStatus,omitempty"`
}

// Kind tags the outcome of a lookup.
type Kind int

const (
	// KindOK carries a complete profile.
	KindOK Kind = iota
	// KindChoices carries disambiguation suggestions for an ambiguous match.
	KindChoices
	// KindNotFound means no customer matched; Message explains why.
	KindNotFound
	// KindInvalid means the identifier was unusable as given.
	KindInvalid
)

// Result is the outcome of one lookup. Exactly one variant is populated;
// callers switch on Kind.
type Result struct {
	Kind    Kind
	Profile *Profile
	Message string
	Matches []resolve.Suggestion
	Keyword string
}

// Options tunes the profile builder.
type Options struct {
	PageSize     int
	TaskPageSize int
	// OwnerKeyword marks maintenance-scheduler task owners.
	OwnerKeyword string
	// TaskGapDays caps fallback task dates; zero disables the cap.
	TaskGapDays int
	// OpportunityDetailURL is an optional {id}/{code} template for plan links.
	OpportunityDetailURL string
}

// Builder assembles member profiles from CRM data.
type Builder struct {
	client yonbip.Client
	engine *search.Engine
	plans  *plan.Builder
	opts   Options
	now    func() time.Time
}

// New creates a profile builder over the given CRM client.
func New(client yonbip.Client, opts Options) *Builder {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.TaskPageSize <= 0 {
		opts.TaskPageSize = opts.PageSize
	}
	return &Builder{
		client: client,
		engine: search.NewEngine(client, opts.PageSize),
		plans:  plan.NewBuilder(client, opts.PageSize, opts.OpportunityDetailURL),
		opts:   opts,
		now:    time.Now,
	}
}

func notFound(message string) Result {
	return Result{Kind: KindNotFound, Message: message}
}

// Build runs one lookup. The detail cache lives inside the per-call resolver,
// so concurrent Build calls never share state.
func (b *Builder) Build(ctx context.Context, identifier string) Result {
	keyword := strings.TrimSpace(identifier)
	if keyword == "" {
		return Result{Kind: KindInvalid, Message: MsgEmptyInput}
	}

	kind := identify.Classify(keyword)
	zap.L().Info("member lookup",
		zap.String("keyword", keyword),
		zap.Stringer("kind", kind))

	var expectedCode string
	if kind == identify.KindCode {
		expectedCode = identify.NormalizeCode(keyword)
	}

	records := b.engine.Find(ctx, keyword, kind, search.Pair{})

	if expectedCode == "" && len(records) > 0 {
		suggestions := resolve.BuildSuggestions(records)
		if len(suggestions) == 0 {
			return notFound(MsgNoCustomer)
		}
		if len(suggestions) > 1 {
			return Result{Kind: KindChoices, Message: MsgAmbiguous, Matches: suggestions, Keyword: keyword}
		}
		expectedCode = identify.NormalizeCode(suggestions[0].Code)
	}

	resolver := resolve.New(b.client)

	var resolvedCode string
	if expectedCode != "" {
		var codeSuggestions []string
		records, resolvedCode, codeSuggestions = resolver.FilterForCode(ctx, records, expectedCode)
		if len(records) == 0 {
			if len(codeSuggestions) > 0 {
				hints := codeSuggestions
				if len(hints) > 5 {
					hints = hints[:5]
				}
				return notFound("找不到對應的客戶編碼，可能是：" + strings.Join(hints, "、") + "，請輸入完整的編碼。")
			}
			return notFound(MsgCodeNotFound)
		}
	}

	if len(records) == 0 {
		return notFound(MsgNoRecords)
	}

	targetCode := strings.ToUpper(record.FirstNonEmpty(resolvedCode, expectedCode, keyword))

	var tasks []record.Record
	if targetCode != "" {
		items, err := b.client.GetTasks(ctx, targetCode, 1, b.opts.TaskPageSize)
		if err != nil {
			zap.L().Warn("task fetch failed",
				zap.String("customer_code", targetCode),
				zap.Error(err))
		} else {
			tasks = record.Records(items)
		}
	}

	today := dates.Truncate(b.now())
	summary := maintain.Extract(targetCode, records, tasks, maintain.Options{
		OwnerKeyword: b.opts.OwnerKeyword,
		MaxGapDays:   b.opts.TaskGapDays,
	}, today)

	latestServiceDate := summary.LatestServiceDate
	nextServiceDate := summary.NextServiceDate
	if nextServiceDate != "" {
		if base, ok := dates.Parse(nextServiceDate); ok {
			nextServiceDate = dates.ISO(base.AddDate(0, 0, nextServiceOffsetDays))
		}
	}

	paymentStatus := maintain.PaymentStatus(records, today)
	resolvedCode = record.FirstNonEmpty(summary.CustomerCode, targetCode)

	latestRecord := maintain.RecordByDate(records, latestServiceDate)
	if latestRecord == nil {
		latestRecord = maintain.LatestServiceRecord(records, today)
		if latestRecord != nil && latestServiceDate == "" {
			latestServiceDate = dates.Format(latestRecord.Get("followTime"))
		}
	}
	if latestRecord == nil {
		return notFound(MsgNoMaintenance)
	}

	customerID := record.CleanText(latestRecord.Get("customer"))
	orgID := record.CleanText(latestRecord.Get("org"))

	var detail record.Record
	if customerID != "" && orgID != "" {
		detail = resolver.Detail(ctx, customerID, orgID)
	}

	addressText, contact := b.resolveAddress(ctx, detail)

	followInfo := FollowInfo(detail)
	merchant, _ := record.AsRecord(detail.Get("merchantAppliedDetail"))
	merchantDefine, _ := record.AsRecord(detail.Get("merchantDefine"))
	merchantCharacter, _ := record.AsRecord(detail.Get("merchantCharacter"))

	contractNumber := record.FirstNonEmpty(
		detail.Get("contractNumber"),
		merchant.Get("contractNumber"),
		merchant.Get("contractNo"),
		merchant.Get("contractCode"),
		merchant.Get("merchantApplyRangeId"),
		merchant.Get("id"),
		merchantDefine.Get("define1"),
		merchantCharacter.Get("attrext21"),
		followInfo["合約編號"],
		followInfo["合同編號"],
		followInfo["合同號"],
		followInfo["合約號"],
	)
	usage := record.FirstNonEmpty(
		detail.Get("largeText1"),
		detail.Get("usage"),
		followInfo["使用方式"],
	)
	planType := record.FirstNonEmpty(
		detail.Get("largeText2"),
		followInfo["設備"],
	)
	if planType == "" && followInfo["內容"] != "" {
		content := record.CleanText(followInfo["內容"])
		// Schedule notes read like dates, not plan names.
		if content != "" && !dates.ContainsDate(content) {
			planType = content
		}
	}
	monthlyFee := record.FirstNonEmpty(
		detail.Get("largeText3"),
		followInfo["月費"],
		followInfo["金額"],
	)
	paymentMethod := DetectPaymentMethod(detail, followInfo)

	candidateCodes := resolver.CandidateCodes(ctx, latestRecord)
	var firstCandidate string
	if len(candidateCodes) > 0 {
		firstCandidate = candidateCodes[0]
	}
	resolvedCode = record.FirstNonEmpty(detail.Get("code"), resolvedCode, firstCandidate)

	var plans []plan.Plan
	if resolvedCode != "" {
		plans = b.plans.Build(ctx, resolvedCode, latestRecord, detail, records)
		if len(plans) > 0 {
			var summaries []string
			for _, p := range plans {
				if name := strings.TrimSpace(record.FirstNonEmpty(p.Summary, p.Title)); name != "" {
					summaries = append(summaries, name)
				}
			}
			if len(summaries) > 0 {
				planType = strings.Join(summaries, " / ")
			}
			for _, p := range plans {
				if contractNumber == "" && p.ContractNumber != "" {
					contractNumber = p.ContractNumber
				}
				if paymentMethod == "" && p.PaymentMethod != "" {
					paymentMethod = p.PaymentMethod
				}
				if monthlyFee == "" && p.MonthlyFee != "" {
					monthlyFee = p.MonthlyFee
				}
				if usage == "" && p.Usage != "" {
					usage = p.Usage
				}
			}
		}
	}

	if nextServiceDate == "" {
		nextServiceDate = maintain.ResolveNextServiceDate(latestServiceDate, followInfo, records, today)
	}

	return Result{
		Kind: KindOK,
		Profile: &Profile{
			Keyword:           keyword,
			CustomerCode:      resolvedCode,
			CustomerName:      record.FirstNonEmpty(detail.Get("name"), detail.Get("enterpriseName"), latestRecord.Get("customer_name")),
			LatestServiceDate: latestServiceDate,
			NextServiceDate:   nextServiceDate,
			ContractNumber:    contractNumber,
			PaymentMethod:     paymentMethod,
			Usage:             usage,
			PlanType:          planType,
			MonthlyFee:        monthlyFee,
			Address:           addressText,
			Contact:           contact,
			Plans:             plans,
			PaymentStatus:     paymentStatus,
		},
	}
}

// resolveAddress picks the customer's display address and contact person:
// the default address entry when flagged, else the first, with the detail
// record's own fields as fallback.
func (b *Builder) resolveAddress(ctx context.Context, detail record.Record) (string, Contact) {
	if len(detail) == 0 {
		return "", Contact{}
	}

	var addresses []record.Record
	if items, ok := record.AsSlice(detail.Get("merchantAddressInfos")); ok {
		for _, item := range items {
			if rec, ok := record.AsRecord(item); ok {
				addresses = append(addresses, rec)
			}
		}
	}
	if len(addresses) == 0 {
		if code := record.CleanText(detail.Get("code")); code != "" {
			items, err := b.client.GetAddressesByCodes(ctx, []string{code})
			if err != nil {
				zap.L().Warn("address fetch failed",
					zap.String("customer_code", code),
					zap.Error(err))
			} else {
				addresses = record.Records(items)
			}
		}
	}

	var selected record.Record
	for _, addr := range addresses {
		if truthy(addr.Get("isDefault")) {
			selected = addr
			break
		}
	}
	if selected == nil && len(addresses) > 0 {
		selected = addresses[0]
	}

	var addressText string
	var contact Contact
	if selected != nil {
		addressText = record.FirstNonEmpty(
			selected.Get("mergerName"),
			selected.Get("address"),
			selected.Get("addressInfo"),
		)
		contact.Name = record.CleanText(selected.Get("receiver"))
		contact.Phone = record.FirstNonEmpty(selected.Get("mobile"), selected.Get("telePhone"))
	}

	if addressText == "" {
		addressText = record.CleanText(detail.Get("address"))
	}
	if contact.Name == "" {
		contact.Name = record.CleanText(detail.Get("contactName"))
	}
	if contact.Phone == "" {
		contact.Phone = record.FirstNonEmpty(detail.Get("contactTel"), detail.Get("contactMobile"))
	}
	return addressText, contact
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case string:
		return val != "" && val != "0" && !strings.EqualFold(val, "false")
	default:
		return false
	}
}
