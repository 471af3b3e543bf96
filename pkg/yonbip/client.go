// Package yonbip provides signed REST access to a YonBIP-style CRM gateway.
//
// Every call carries a cached self-app access token as a query parameter.
// Responses arrive wrapped in an envelope whose business code must be one of
// the gateway's success codes before the payload is usable.
package yonbip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the CRM operations used by the lookup pipeline. All calls
// are read-only.
type Client interface {
	GetFollowups(ctx context.Context, q FollowupQuery) ([]map[string]any, error)
	GetTasks(ctx context.Context, customerCode string, page, pageSize int) ([]map[string]any, error)
	GetCustomerDetail(ctx context.Context, customerID, orgID string) (map[string]any, error)
	GetAddressesByCodes(ctx context.Context, codes []string) ([]map[string]any, error)
	GetOpportunities(ctx context.Context, value string, page, pageSize int, field, operator string) ([]map[string]any, error)
	GetOpportunityDetail(ctx context.Context, opportunityID string) (map[string]any, error)
	CheckOpportunityRepeat(ctx context.Context, q RepeatCheckQuery) (map[string]any, error)
}

// FollowupQuery describes one follow-up list search.
type FollowupQuery struct {
	Keyword  string
	Page     int
	PageSize int
	// SearchField and SearchOperator default to the configured follow-up
	// field/operator when empty.
	SearchField    string
	SearchOperator string
	// ValueOverride, when set, is sent verbatim instead of the keyword with
	// operator-dependent wildcard wrapping.
	ValueOverride string
}

// RepeatCheckQuery drives the gateway's opportunity duplicate check.
type RepeatCheckQuery struct {
	Data         map[string]any
	SystemSource string
	Action       string
	MainBillNum  string
	BillNum      string
	TabInfo      []map[string]any
}

// Config holds the gateway endpoints and per-endpoint search defaults.
type Config struct {
	GatewayURL string

	FollowupListPath       string
	FollowupCustomerField  string
	FollowupSearchOperator string

	TaskListPath         string
	TaskCustomerField    string
	TaskCustomerOperator string

	CustomerDetailPath string
	AddressListPath    string

	OpportunityListPath      string
	OpportunityDetailPath    string
	OpportunityRepeatPath    string
	OpportunityCustomerField string
	OpportunityCustomerOp    string
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second rate limit on gateway calls. A burst equal
// to the integer portion of rps is allowed.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	cfg     Config
	tokens  TokenProvider
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a gateway client.
func NewClient(cfg Config, tokens TokenProvider, opts ...Option) Client {
	cfg.GatewayURL = strings.TrimRight(cfg.GatewayURL, "/")
	c := &httpClient{
		cfg:    cfg,
		tokens: tokens,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// envelope is the gateway response wrapper. Data and Result shapes vary per
// endpoint, so both stay raw until the caller decodes them.
type envelope struct {
	Code    any             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Result  json.RawMessage `json:"result"`
	raw     []byte
}

var successCodes = map[string]bool{
	"00000":  true,
	"200":    true,
	"200000": true,
}

func (c *httpClient) request(ctx context.Context, method, path string, params url.Values, body any) (*envelope, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "yonbip: rate limit")
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "yonbip: access token")
	}

	query := url.Values{}
	query.Set("access_token", token)
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, eris.Wrap(err, "yonbip: marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.GatewayURL+path+"?"+query.Encode(), reader)
	if err != nil {
		return nil, eris.Wrap(err, "yonbip: create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("yonbip: call %s", path))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("yonbip: read %s response", path))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, eris.Errorf("yonbip: %s status %d: %s", path, resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("yonbip: decode %s response", path))
	}
	env.raw = respBody
	if !successCodes[fmt.Sprint(env.Code)] {
		return nil, eris.Errorf("yonbip: %s business error: %s", path, string(respBody))
	}
	return &env, nil
}

// recordList decodes a data payload of the form {"recordList": [...]}.
func (e *envelope) recordList() ([]map[string]any, error) {
	if len(e.Data) == 0 {
		return nil, nil
	}
	var data struct {
		RecordList []map[string]any `json:"recordList"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, eris.Wrap(err, "yonbip: decode record list")
	}
	return data.RecordList, nil
}

func (e *envelope) dataObject() (map[string]any, error) {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil, nil
	}
	var data map[string]any
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, eris.Wrap(err, "yonbip: decode data object")
	}
	return data, nil
}

func (c *httpClient) GetFollowups(ctx context.Context, q FollowupQuery) ([]map[string]any, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 10
	}
	payload := map[string]any{
		"pageIndex": q.Page,
		"pageSize":  q.PageSize,
	}

	if q.Keyword != "" || q.ValueOverride != "" {
		field := q.SearchField
		if field == "" {
			field = c.cfg.FollowupCustomerField
		}
		operator := strings.TrimSpace(q.SearchOperator)
		if operator == "" {
			operator = c.cfg.FollowupSearchOperator
		}
		value := q.ValueOverride
		if value == "" {
			value = likeWrap(q.Keyword, operator)
		}
		payload["simpleVOs"] = []map[string]any{
			{"field": field, "op": operator, "value1": value},
		}
	}

	env, err := c.request(ctx, http.MethodPost, c.cfg.FollowupListPath, nil, payload)
	if err != nil {
		return nil, err
	}
	return env.recordList()
}

// likeWrap applies the wildcard wrapping the gateway expects for like-family
// operators, unless the value already carries wildcards.
func likeWrap(keyword, operator string) string {
	trimmed := strings.TrimSpace(keyword)
	hasWildcard := strings.ContainsAny(keyword, "%_")
	switch strings.ToLower(operator) {
	case "like":
		if !hasWildcard {
			return "%" + trimmed + "%"
		}
	case "likeleft":
		if !strings.HasSuffix(trimmed, "%") {
			return "%" + trimmed
		}
	case "likeright":
		if !strings.HasPrefix(trimmed, "%") {
			return trimmed + "%"
		}
	}
	return trimmed
}

func (c *httpClient) GetTasks(ctx context.Context, customerCode string, page, pageSize int) ([]map[string]any, error) {
	if c.cfg.TaskListPath == "" {
		return nil, eris.New("yonbip: task list path not configured")
	}
	payload := map[string]any{
		"pageIndex": page,
		"pageSize":  pageSize,
	}
	if customerCode != "" {
		filter := map[string]any{
			"field":  c.cfg.TaskCustomerField,
			"op":     c.cfg.TaskCustomerOperator,
			"value1": customerCode,
		}
		if c.cfg.TaskCustomerOperator == "between" {
			filter["value2"] = customerCode
		}
		payload["simpleVOs"] = []map[string]any{filter}
	}

	env, err := c.request(ctx, http.MethodPost, c.cfg.TaskListPath, nil, payload)
	if err != nil {
		return nil, err
	}
	return env.recordList()
}

func (c *httpClient) GetCustomerDetail(ctx context.Context, customerID, orgID string) (map[string]any, error) {
	params := url.Values{}
	params.Set("id", customerID)
	params.Set("orgId", orgID)

	env, err := c.request(ctx, http.MethodGet, c.cfg.CustomerDetailPath, params, nil)
	if err != nil {
		return nil, err
	}
	return env.dataObject()
}

func (c *httpClient) GetAddressesByCodes(ctx context.Context, codes []string) ([]map[string]any, error) {
	payload := map[string]any{
		"codeList":  codes,
		"pageIndex": 1,
		"pageSize":  max(len(codes), 1),
	}

	env, err := c.request(ctx, http.MethodPost, c.cfg.AddressListPath, nil, payload)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return nil, nil
	}
	var addresses []map[string]any
	if err := json.Unmarshal(env.Data, &addresses); err != nil {
		return nil, eris.Wrap(err, "yonbip: decode address list")
	}
	return addresses, nil
}

func (c *httpClient) GetOpportunities(ctx context.Context, value string, page, pageSize int, field, operator string) ([]map[string]any, error) {
	if c.cfg.OpportunityListPath == "" {
		return nil, nil
	}
	payload := map[string]any{
		"pageIndex": page,
		"pageSize":  pageSize,
	}
	if value != "" {
		if field == "" {
			field = c.cfg.OpportunityCustomerField
		}
		if operator == "" {
			operator = c.cfg.OpportunityCustomerOp
		}
		payload["simpleVOs"] = []map[string]any{
			{"field": field, "op": operator, "value1": value},
		}
	}

	env, err := c.request(ctx, http.MethodPost, c.cfg.OpportunityListPath, nil, payload)
	if err != nil {
		return nil, err
	}
	return env.recordList()
}

func (c *httpClient) GetOpportunityDetail(ctx context.Context, opportunityID string) (map[string]any, error) {
	if c.cfg.OpportunityDetailPath == "" || opportunityID == "" {
		return nil, nil
	}
	params := url.Values{}
	params.Set("id", opportunityID)

	env, err := c.request(ctx, http.MethodGet, c.cfg.OpportunityDetailPath, params, nil)
	if err != nil {
		// Some tenants expose the detail endpoint as POST only.
		env, err = c.request(ctx, http.MethodPost, c.cfg.OpportunityDetailPath, params, map[string]any{"id": opportunityID})
		if err != nil {
			return nil, err
		}
	}
	return env.detailObject()
}

// detailObject returns the opportunity detail payload, falling back from
// data to result to the whole envelope body.
func (e *envelope) detailObject() (map[string]any, error) {
	if obj, err := e.dataObject(); err == nil && obj != nil {
		return obj, nil
	}
	if len(e.Result) > 0 && string(e.Result) != "null" {
		var obj map[string]any
		if err := json.Unmarshal(e.Result, &obj); err == nil && obj != nil {
			return obj, nil
		}
	}
	var whole map[string]any
	if err := json.Unmarshal(e.raw, &whole); err != nil {
		return nil, eris.Wrap(err, "yonbip: decode opportunity detail")
	}
	return whole, nil
}

func (c *httpClient) CheckOpportunityRepeat(ctx context.Context, q RepeatCheckQuery) (map[string]any, error) {
	if c.cfg.OpportunityRepeatPath == "" {
		return nil, eris.New("yonbip: opportunity repeat-check path not configured")
	}
	if q.SystemSource == "" {
		q.SystemSource = "mt"
	}
	if q.Action == "" {
		q.Action = "browse"
	}
	if q.MainBillNum == "" {
		q.MainBillNum = "sfa_opptcard"
	}
	billNum := q.BillNum
	if billNum == "" {
		billNum = q.MainBillNum
	}
	tabInfo := q.TabInfo
	if len(tabInfo) == 0 {
		tabInfo = []map[string]any{{"billNum": billNum, "mappingType": "0"}}
	}
	data := q.Data
	if data == nil {
		data = map[string]any{}
	}
	payload := map[string]any{
		"systemSource": q.SystemSource,
		"action":       q.Action,
		"mainBillNum":  q.MainBillNum,
		"data":         data,
		"billnum":      billNum,
		"tabInfo":      tabInfo,
	}

	env, err := c.request(ctx, http.MethodPost, c.cfg.OpportunityRepeatPath, nil, payload)
	if err != nil {
		return nil, err
	}
	return env.dataObject()
}
