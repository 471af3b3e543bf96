// Package plan assembles contract-plan summaries from CRM opportunity
// records. Opportunity rows are found by walking several customer-identifying
// values through the bill list endpoint, then enriched with the per-record
// detail payload. Field values live under wildly inconsistent keys across
// deployments, so every plan field is read through an alias list.
package plan

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/maqua/member-lookup/internal/record"
	"github.com/maqua/member-lookup/pkg/yonbip"
)

// Plan is one contract plan derived from an opportunity record.
type Plan struct {
	ID             string   `json:"id,omitempty"`
	Title          string   `json:"title"`
	Stage          string   `json:"stage,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	Usage          string   `json:"usage,omitempty"`
	PaymentMethod  string   `json:"paymentMethod,omitempty"`
	MonthlyFee     string   `json:"monthlyFee,omitempty"`
	ContractNumber string   `json:"contractNumber,omitempty"`
	ContractBegin  string   `json:"contractBegin,omitempty"`
	ContractEnd    string   `json:"contractEnd,omitempty"`
	ContractTerm   string   `json:"contractTerm,omitempty"`
	DetailURL      string   `json:"detailUrl,omitempty"`
	Details        []Detail `json:"details"`
}

// Detail is one display row of a plan.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Builder looks up and assembles plans for a customer.
type Builder struct {
	client      yonbip.Client
	pageSize    int
	urlTemplate string
}

// NewBuilder creates a plan builder. urlTemplate may contain {id} and {code}
// placeholders for the opportunity web link; empty disables link synthesis.
func NewBuilder(client yonbip.Client, pageSize int, urlTemplate string) *Builder {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Builder{client: client, pageSize: pageSize, urlTemplate: urlTemplate}
}

type filter struct {
	value    string
	field    string
	operator string
}

// Build collects opportunity records for the customer and turns them into
// plans. latestRecord, detail, and followups widen the candidate-value set
// and mark the opportunity ids already referenced by the follow-up history;
// when any such primary id matches, only those records survive.
func (b *Builder) Build(ctx context.Context, customerCode string, latestRecord, detail record.Record, followups []record.Record) []Plan {
	values := b.candidateValues(customerCode, latestRecord, detail)
	primaryIDs := primaryIDSet(latestRecord, followups)

	var filters []filter
	for _, value := range values {
		filters = append(filters, filter{value: value})
		if isDigits(value) {
			filters = append(filters, filter{value: value, field: "customer", operator: "eq"})
		}
		if len([]rune(value)) > 3 && !isDigits(value) {
			filters = append(filters, filter{value: value, field: "customer.name", operator: "like"})
		}
	}

	seen := make(map[string]bool)
	var found []record.Record
	for _, f := range filters {
		items, err := b.client.GetOpportunities(ctx, f.value, 1, b.pageSize, f.field, f.operator)
		if err != nil {
			zap.L().Debug("opportunity lookup failed",
				zap.String("value", f.value),
				zap.String("field", f.field),
				zap.Error(err))
			continue
		}
		for _, item := range items {
			rec := record.Record(item)
			key := inferredID(rec)
			if key != "" {
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			found = append(found, rec)
		}
	}
	if len(found) == 0 {
		return nil
	}

	if len(primaryIDs) > 0 {
		var prioritized []record.Record
		for _, rec := range found {
			if id := inferredID(rec); id != "" && primaryIDs[id] {
				prioritized = append(prioritized, rec)
			}
		}
		if len(prioritized) > 0 {
			found = prioritized
		}
	}

	var plans []Plan
	for _, rec := range found {
		opportunityID := record.FirstNonEmpty(
			rec.Get("id"), rec.Get("oppt"), rec.Get("opptId"),
			rec.Get("opportunityId"), rec.Get("businessId"))

		var detailData record.Record
		if opportunityID != "" {
			data, err := b.client.GetOpportunityDetail(ctx, opportunityID)
			if err != nil {
				zap.L().Debug("opportunity detail lookup failed",
					zap.String("id", opportunityID),
					zap.Error(err))
			} else {
				detailData = record.Record(data)
			}
		}
		if plan, ok := b.buildPlan(rec, detailData, opportunityID); ok {
			plans = append(plans, plan)
		}
	}
	return plans
}

// candidateValues orders the search values: the resolved code first, then
// identifiers pulled from the latest follow-up and the customer detail.
func (b *Builder) candidateValues(customerCode string, latestRecord, detail record.Record) []string {
	var values []string
	add := func(v any) {
		text := record.CleanText(v)
		if text == "" {
			return
		}
		for _, existing := range values {
			if existing == text {
				return
			}
		}
		values = append(values, text)
	}

	add(customerCode)
	if latestRecord != nil {
		add(record.FirstNonEmpty(latestRecord.Get("customer_code"), latestRecord.Get("customerCode")))
		add(latestRecord.Get("customer"))
	}
	if detail != nil {
		add(detail.Get("code"))
		add(detail.Get("id"))
		add(detail.Get("customerCode"))
		add(detail.Get("customer"))
		if merchant, ok := record.AsRecord(detail.Get("merchantAppliedDetail")); ok {
			add(merchant.Get("contractNo"))
		}
	}
	return values
}

func primaryIDSet(latestRecord record.Record, followups []record.Record) map[string]bool {
	ids := make(map[string]bool)
	add := func(v any) {
		if text := record.CleanText(v); text != "" {
			ids[text] = true
		}
	}
	if latestRecord != nil {
		add(record.FirstNonEmpty(latestRecord.Get("oppt"), latestRecord.Get("opptId")))
		add(record.FirstNonEmpty(latestRecord.Get("opportunityId"), latestRecord.Get("businessId")))
	}
	for _, rec := range followups {
		add(record.FirstNonEmpty(rec.Get("oppt"), rec.Get("opptId")))
		add(record.FirstNonEmpty(rec.Get("opportunityId"), rec.Get("businessId")))
	}
	return ids
}

func inferredID(rec record.Record) string {
	return record.FirstNonEmpty(
		rec.Get("id"), rec.Get("oppt"), rec.Get("opptId"),
		rec.Get("opportunityId"), rec.Get("businessId"), rec.Get("code"))
}

// buildPlan maps one opportunity record plus its detail payload into a Plan.
// Both payloads are flattened into a source stack so alias keys can match at
// any nesting depth.
func (b *Builder) buildPlan(rec, detail record.Record, opportunityID string) (Plan, bool) {
	sources := record.CollectSources(rec, detail)

	planID := record.ExtractValue(sources, "id", "oppt", "opptId", "opportunityId", "businessId")
	if planID == "" {
		planID = opportunityID
	}
	title := record.ExtractValue(sources, "oppt_name", "name", "商機名稱")
	stage := record.ExtractValue(sources, "opptStage_name", "stageName", "商機階段")
	summary := record.ExtractValue(sources,
		"planType", "plan_type", "方案類型", "schemeName", "productName",
		"headDef!define9", "opptDefineCharacter.attrext9")
	usage := record.ExtractValue(sources,
		"usage", "useType", "使用方式", "headDef!define8", "opptDefineCharacter.attrext8")
	payment := record.ExtractValue(sources,
		"paymentMethod", "paymentMethodName", "paymentWay", "payWay_name",
		"paywayName", "目前付費方式", "付款方式")
	monthly := record.ExtractValue(sources,
		"monthlyFee", "rentAmount", "rent", "月費金額",
		"headDef!define10", "headDef!define11",
		"opptDefineCharacter.attrext12", "opptDefineCharacter.attrext10")
	contractNumber := record.ExtractValue(sources,
		"contractNo", "contractNumber", "合約編號", "合同編號",
		"headDef!define13", "opptDefineCharacter.attrext19")
	contractBegin := record.ExtractValue(sources,
		"contractBeginDate", "startDate", "合約開始日期", "開始日期",
		"headDef!define2", "opptDefineCharacter.attrext2")
	contractEnd := record.ExtractValue(sources,
		"contractEndDate", "endDate", "合約結束日期", "結束日期",
		"headDef!define3", "opptDefineCharacter.attrext3")
	contractTerm := record.ExtractValue(sources,
		"contractYear", "合約年期", "headDef!define4", "opptDefineCharacter.attrext4")

	detailURL := record.ExtractValue(sources, "pcUrl", "detailUrl", "detail_url", "url")
	if detailURL == "" && b.urlTemplate != "" && planID != "" {
		detailURL = strings.NewReplacer("{id}", planID, "{code}", planID).Replace(b.urlTemplate)
	}

	displaySummary := summary
	if displaySummary == "" {
		displaySummary = record.ExtractValue(sources, "solutionName", "方案名稱", "planName")
	}

	var details []Detail
	addDetail := func(label string, keys ...string) {
		if value := record.ExtractValue(sources, keys...); value != "" {
			details = append(details, Detail{Label: label, Value: value})
		}
	}

	if displaySummary != "" {
		details = append(details, Detail{Label: "方案類型", Value: displaySummary})
	}
	addDetail("使用方式", "usage", "useType", "使用方式", "headDef!define8", "opptDefineCharacter.attrext8")
	addDetail("付費方式",
		"paymentMethod", "paymentMethodName", "paymentWay", "payWay_name",
		"paywayName", "目前付費方式", "付款方式")
	addDetail("月費金額", "monthlyFee", "rentAmount", "rent", "月費金額", "headDef!define11", "opptDefineCharacter.attrext12")
	addDetail("合約編號", "contractNo", "contractNumber", "合同編號", "合約編號", "headDef!define13", "opptDefineCharacter.attrext19")
	addDetail("合約開始日", "contractBeginDate", "startDate", "合約開始日期", "開始日期", "headDef!define2", "opptDefineCharacter.attrext2")
	addDetail("合約結束日", "contractEndDate", "endDate", "合約結束日期", "結束日期", "headDef!define3", "opptDefineCharacter.attrext3")
	addDetail("合約年期", "contractYear", "合約年期", "headDef!define4", "opptDefineCharacter.attrext4")
	addDetail("預計簽單金額", "expectSignMoney", "planAmount", "amount", "預計簽單金額")
	addDetail("商機階段", "opptStage_name", "stageName", "商機階段")
	addDetail("方案負責人", "ownerName", "ower_name", "負責人")
	addDetail("交易類型", "opptTransType_name", "bustype_name", "交易類型")
	addDetail("安裝位置", "installLocation", "address", "安裝位置")

	details = orderDetails(dedupeDetails(details))

	if displaySummary == "" && title == "" && len(details) == 0 {
		return Plan{}, false
	}

	planTitle := title
	if planTitle == "" {
		planTitle = displaySummary
	}
	if planTitle == "" {
		planTitle = "商機"
	}
	planSummary := displaySummary
	if planSummary == "" {
		planSummary = title
	}

	return Plan{
		ID:             planID,
		Title:          planTitle,
		Stage:          stage,
		Summary:        planSummary,
		Usage:          usage,
		PaymentMethod:  payment,
		MonthlyFee:     monthly,
		ContractNumber: contractNumber,
		ContractBegin:  contractBegin,
		ContractEnd:    contractEnd,
		ContractTerm:   contractTerm,
		DetailURL:      detailURL,
		Details:        details,
	}, true
}

var preferredLabelOrder = []string{
	"合約編號",
	"方案類型",
	"使用方式",
	"付費方式",
	"月費金額",
	"合約開始日",
	"合約結束日",
	"合約年期",
	"預計簽單金額",
	"商機階段",
	"方案負責人",
	"交易類型",
	"安裝位置",
}

func dedupeDetails(items []Detail) []Detail {
	seen := make(map[Detail]bool, len(items))
	var out []Detail
	for _, item := range items {
		if item.Value == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// orderDetails sorts rows by the preferred label order, keeping unknown
// labels at the end in their original order.
func orderDetails(items []Detail) []Detail {
	if len(items) == 0 {
		return items
	}
	byLabel := make(map[string][]Detail)
	for _, item := range items {
		byLabel[item.Label] = append(byLabel[item.Label], item)
	}

	seen := make(map[Detail]bool, len(items))
	ordered := make([]Detail, 0, len(items))
	for _, label := range preferredLabelOrder {
		for _, item := range byLabel[label] {
			if !seen[item] {
				ordered = append(ordered, item)
				seen[item] = true
			}
		}
	}
	for _, item := range items {
		if !seen[item] {
			ordered = append(ordered, item)
			seen[item] = true
		}
	}
	return ordered
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
