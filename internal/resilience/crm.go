package resilience

import (
	"context"

	"github.com/maqua/member-lookup/pkg/yonbip"
)

// WrapClient decorates a gateway client with transient-failure retries. With
// MaxAttempts <= 1 the client is returned untouched, so the default
// configuration keeps single-shot semantics.
func WrapClient(inner yonbip.Client, cfg RetryConfig) yonbip.Client {
	if cfg.MaxAttempts <= 1 {
		return inner
	}
	return &retryingClient{inner: inner, cfg: cfg}
}

type retryingClient struct {
	inner yonbip.Client
	cfg   RetryConfig
}

func (c *retryingClient) config(operation string) RetryConfig {
	cfg := c.cfg
	if cfg.OnRetry == nil {
		cfg.OnRetry = RetryLogger(operation)
	}
	return cfg
}

func (c *retryingClient) GetFollowups(ctx context.Context, q yonbip.FollowupQuery) ([]map[string]any, error) {
	return DoVal(ctx, c.config("followup_list"), func(ctx context.Context) ([]map[string]any, error) {
		return c.inner.GetFollowups(ctx, q)
	})
}

func (c *retryingClient) GetTasks(ctx context.Context, customerCode string, page, pageSize int) ([]map[string]any, error) {
	return DoVal(ctx, c.config("task_list"), func(ctx context.Context) ([]map[string]any, error) {
		return c.inner.GetTasks(ctx, customerCode, page, pageSize)
	})
}

func (c *retryingClient) GetCustomerDetail(ctx context.Context, customerID, orgID string) (map[string]any, error) {
	return DoVal(ctx, c.config("customer_detail"), func(ctx context.Context) (map[string]any, error) {
		return c.inner.GetCustomerDetail(ctx, customerID, orgID)
	})
}

func (c *retryingClient) GetAddressesByCodes(ctx context.Context, codes []string) ([]map[string]any, error) {
	return DoVal(ctx, c.config("address_list"), func(ctx context.Context) ([]map[string]any, error) {
		return c.inner.GetAddressesByCodes(ctx, codes)
	})
}

func (c *retryingClient) GetOpportunities(ctx context.Context, value string, page, pageSize int, field, operator string) ([]map[string]any, error) {
	return DoVal(ctx, c.config("opportunity_list"), func(ctx context.Context) ([]map[string]any, error) {
		return c.inner.GetOpportunities(ctx, value, page, pageSize, field, operator)
	})
}

func (c *retryingClient) GetOpportunityDetail(ctx context.Context, opportunityID string) (map[string]any, error) {
	return DoVal(ctx, c.config("opportunity_detail"), func(ctx context.Context) (map[string]any, error) {
		return c.inner.GetOpportunityDetail(ctx, opportunityID)
	})
}

func (c *retryingClient) CheckOpportunityRepeat(ctx context.Context, q yonbip.RepeatCheckQuery) (map[string]any, error) {
	return DoVal(ctx, c.config("opportunity_repeat_check"), func(ctx context.Context) (map[string]any, error) {
		return c.inner.CheckOpportunityRepeat(ctx, q)
	})
}
