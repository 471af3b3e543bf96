// Package search implements the follow-up search strategy: ordered literal
// value candidates per query, operator-aware wildcarding, and per-mode
// field/operator fallback sequences that run until something matches.
package search

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/maqua/member-lookup/internal/identify"
	"github.com/maqua/member-lookup/internal/record"
	"github.com/maqua/member-lookup/pkg/yonbip"
)

// Pair is one (search field, operator) attempt against the follow-up list.
type Pair struct {
	Field    string
	Operator string
}

// PhoneFallbacks is the ordered attempt sequence for phone-shaped queries
// once the primary contactMobile/like search comes back empty.
var PhoneFallbacks = []Pair{
	{"contactMobile", "like"},
	{"contactTel", "like"},
	{"customer.contactMobile", "like"},
	{"customer.contactTel", "like"},
	{"customer_name", "like"},
	{"customer.name", "like"},
	{"customer.code", "eq"},
	{"contactMobile", "eq"},
	{"contactTel", "eq"},
	{"customer.contactMobile", "eq"},
	{"customer.contactTel", "eq"},
}

// NameFallbacks is the ordered attempt sequence for name-shaped queries.
var NameFallbacks = []Pair{
	{"customer.name", "like"},
	{"customer_name", "like"},
	{"customer.name", "eq"},
	{"customer_name", "eq"},
	{"customerName", "like"},
	{"customer.shortName", "like"},
	{"customer.shortname", "like"},
	{"customer.simpleName", "like"},
	{"enterpriseName", "like"},
	{"customer.enterpriseName", "like"},
}

// Primary returns the starting field/operator for a classified identifier.
// Code-shaped identifiers have no primary pair; they resolve through the
// configured default search instead.
func Primary(kind identify.Kind) (Pair, bool) {
	switch kind {
	case identify.KindPhone:
		return Pair{"contactMobile", "like"}, true
	case identify.KindName:
		return Pair{"customer.name", "like"}, true
	default:
		return Pair{}, false
	}
}

// Fallbacks returns the fallback sequence for a classified identifier.
func Fallbacks(kind identify.Kind) []Pair {
	switch kind {
	case identify.KindPhone:
		return PhoneFallbacks
	case identify.KindName:
		return NameFallbacks
	default:
		return nil
	}
}

// ValueCandidates builds the ordered, deduplicated literal values to try for
// one keyword: the trimmed keyword, the raw keyword when it differs, and a
// wildcard-wrapped form for like-family operators. An empty result falls back
// to the raw keyword.
func ValueCandidates(keyword, operator string) []string {
	trimmed := strings.TrimSpace(keyword)

	var values []string
	if trimmed != "" {
		values = append(values, trimmed)
	}
	if keyword != "" && keyword != trimmed {
		values = append(values, keyword)
	}
	if trimmed != "" {
		switch strings.ToLower(operator) {
		case "like":
			values = append(values, "%"+trimmed+"%")
		case "likeleft":
			values = append(values, "%"+trimmed)
		case "likeright":
			values = append(values, trimmed+"%")
		}
	}

	deduped := dedupe(values)
	if len(deduped) == 0 {
		if trimmed != "" {
			return []string{trimmed}
		}
		return []string{keyword}
	}
	return deduped
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Engine runs follow-up searches against the CRM client.
type Engine struct {
	client   yonbip.Client
	pageSize int
}

// NewEngine creates a search engine with the configured page size.
func NewEngine(client yonbip.Client, pageSize int) *Engine {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Engine{client: client, pageSize: pageSize}
}

// FetchFollowups issues one CRM query per value candidate and returns the
// first non-empty record list. A failed candidate is logged and treated as
// empty; the next candidate still runs.
func (e *Engine) FetchFollowups(ctx context.Context, keyword, field, operator string) []record.Record {
	candidates := ValueCandidates(keyword, operator)
	zap.L().Debug("followup search",
		zap.String("keyword", keyword),
		zap.String("field", field),
		zap.String("operator", operator),
		zap.Strings("candidates", candidates),
	)

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		items, err := e.client.GetFollowups(ctx, yonbip.FollowupQuery{
			Keyword:        keyword,
			Page:           1,
			PageSize:       e.pageSize,
			SearchField:    field,
			SearchOperator: operator,
			ValueOverride:  candidate,
		})
		if err != nil {
			zap.L().Warn("followup search candidate failed",
				zap.String("keyword", keyword),
				zap.String("field", field),
				zap.String("operator", operator),
				zap.String("candidate", candidate),
				zap.Error(err),
			)
			continue
		}
		if len(items) > 0 {
			return record.Records(items)
		}
	}
	return nil
}

// Find runs the primary search for a classified identifier and walks the
// mode's fallback pairs until any attempt returns records. Pairs already
// tried are skipped.
func (e *Engine) Find(ctx context.Context, keyword string, kind identify.Kind, defaults Pair) []record.Record {
	primary, ok := Primary(kind)
	if !ok {
		primary = defaults
	}

	records := e.FetchFollowups(ctx, keyword, primary.Field, primary.Operator)
	if len(records) > 0 {
		return records
	}

	tried := map[Pair]bool{primary: true}
	for _, pair := range Fallbacks(kind) {
		if tried[pair] {
			continue
		}
		tried[pair] = true
		records = e.FetchFollowups(ctx, keyword, pair.Field, pair.Operator)
		if len(records) > 0 {
			return records
		}
	}
	return nil
}
