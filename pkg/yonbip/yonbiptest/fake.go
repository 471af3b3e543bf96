// Package yonbiptest provides an in-memory test double for the gateway client.
package yonbiptest

import (
	"context"

	"github.com/maqua/member-lookup/pkg/yonbip"
)

// FollowupCall records one follow-up search the fake received.
type FollowupCall struct {
	Field    string
	Operator string
	Value    string
}

// Fake implements yonbip.Client with pluggable functions. Unset functions
// return empty results with no error.
type Fake struct {
	FollowupsFn         func(q yonbip.FollowupQuery) ([]map[string]any, error)
	TasksFn             func(customerCode string) ([]map[string]any, error)
	CustomerDetailFn    func(customerID, orgID string) (map[string]any, error)
	AddressesFn         func(codes []string) ([]map[string]any, error)
	OpportunitiesFn     func(value, field, operator string) ([]map[string]any, error)
	OpportunityDetailFn func(opportunityID string) (map[string]any, error)
	RepeatFn            func(q yonbip.RepeatCheckQuery) (map[string]any, error)

	FollowupCalls []FollowupCall
}

var _ yonbip.Client = (*Fake)(nil)

func (f *Fake) GetFollowups(ctx context.Context, q yonbip.FollowupQuery) ([]map[string]any, error) {
	f.FollowupCalls = append(f.FollowupCalls, FollowupCall{
		Field:    q.SearchField,
		Operator: q.SearchOperator,
		Value:    q.ValueOverride,
	})
	if f.FollowupsFn == nil {
		return nil, nil
	}
	return f.FollowupsFn(q)
}

func (f *Fake) GetTasks(ctx context.Context, customerCode string, page, pageSize int) ([]map[string]any, error) {
	if f.TasksFn == nil {
		return nil, nil
	}
	return f.TasksFn(customerCode)
}

func (f *Fake) GetCustomerDetail(ctx context.Context, customerID, orgID string) (map[string]any, error) {
	if f.CustomerDetailFn == nil {
		return nil, nil
	}
	return f.CustomerDetailFn(customerID, orgID)
}

func (f *Fake) GetAddressesByCodes(ctx context.Context, codes []string) ([]map[string]any, error) {
	if f.AddressesFn == nil {
		return nil, nil
	}
	return f.AddressesFn(codes)
}

func (f *Fake) GetOpportunities(ctx context.Context, value string, page, pageSize int, field, operator string) ([]map[string]any, error) {
	if f.OpportunitiesFn == nil {
		return nil, nil
	}
	return f.OpportunitiesFn(value, field, operator)
}

func (f *Fake) GetOpportunityDetail(ctx context.Context, opportunityID string) (map[string]any, error) {
	if f.OpportunityDetailFn == nil {
		return nil, nil
	}
	return f.OpportunityDetailFn(opportunityID)
}

func (f *Fake) CheckOpportunityRepeat(ctx context.Context, q yonbip.RepeatCheckQuery) (map[string]any, error) {
	if f.RepeatFn == nil {
		return nil, nil
	}
	return f.RepeatFn(q)
}
