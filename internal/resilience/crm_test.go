package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maqua/member-lookup/pkg/yonbip"
	"github.com/maqua/member-lookup/pkg/yonbip/yonbiptest"
)

func TestWrapClientPassThrough(t *testing.T) {
	fake := &yonbiptest.Fake{}
	if got := WrapClient(fake, RetryConfig{MaxAttempts: 1}); got != yonbip.Client(fake) {
		t.Fatal("expected inner client back when retries are disabled")
	}
	if got := WrapClient(fake, RetryConfig{}); got != yonbip.Client(fake) {
		t.Fatal("expected inner client back for zero config")
	}
}

func TestWrapClientRetriesTransient(t *testing.T) {
	calls := 0
	fake := &yonbiptest.Fake{
		FollowupsFn: func(q yonbip.FollowupQuery) ([]map[string]any, error) {
			calls++
			if calls < 3 {
				return nil, NewTransientError(errors.New("gateway timeout"), 503)
			}
			return []map[string]any{{"customer_code": "C115"}}, nil
		},
	}

	client := WrapClient(fake, RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})

	records, err := client.GetFollowups(context.Background(), yonbip.FollowupQuery{Keyword: "C115"})
	if err != nil {
		t.Fatalf("GetFollowups: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(records) != 1 || records[0]["customer_code"] != "C115" {
		t.Fatalf("unexpected records: %v", records)
	}
}

func TestWrapClientDoesNotRetryBusinessErrors(t *testing.T) {
	calls := 0
	fake := &yonbiptest.Fake{
		CustomerDetailFn: func(customerID, orgID string) (map[string]any, error) {
			calls++
			return nil, errors.New("yonbip: gateway code 30001")
		},
	}

	client := WrapClient(fake, RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})

	_, err := client.GetCustomerDetail(context.Background(), "cust-1", "org-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWrapClientGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	fake := &yonbiptest.Fake{
		TasksFn: func(customerCode string) ([]map[string]any, error) {
			calls++
			return nil, NewTransientError(errors.New("connection reset"), 0)
		},
	}

	client := WrapClient(fake, RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})

	_, err := client.GetTasks(context.Background(), "C115", 1, 50)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}
