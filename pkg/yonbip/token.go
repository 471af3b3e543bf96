package yonbip

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// TokenProvider supplies a valid gateway access token.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenConfig holds the self-app credentials for the token endpoint.
type TokenConfig struct {
	AppKey    string
	AppSecret string
	TokenURL  string
	TokenPath string
}

type tokenService struct {
	cfg  TokenConfig
	http *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

// NewTokenService creates a caching token provider. Tokens are refreshed one
// minute before the expiry the gateway reports.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) TokenProvider {
	s := &tokenService{
		cfg:  cfg,
		http: &http.Client{Timeout: 12 * time.Second},
		now:  time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TokenOption configures the token service.
type TokenOption func(*tokenService)

// WithTokenHTTPClient overrides the http.Client used for token requests.
func WithTokenHTTPClient(hc *http.Client) TokenOption {
	return func(s *tokenService) {
		s.http = hc
	}
}

func (s *tokenService) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.expires.After(s.now()) {
		return s.token, nil
	}

	token, expireSecs, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	grace := time.Duration(max(expireSecs-60, 60)) * time.Second
	s.token = token
	s.expires = s.now().Add(grace)
	return token, nil
}

func (s *tokenService) fetch(ctx context.Context) (string, int, error) {
	timestamp := strconv.FormatInt(s.now().UnixMilli(), 10)
	params := url.Values{}
	params.Set("appKey", s.cfg.AppKey)
	params.Set("timestamp", timestamp)
	params.Set("signature", signature(s.cfg.AppKey, s.cfg.AppSecret, timestamp))

	endpoint := strings.TrimRight(s.cfg.TokenURL, "/") + s.cfg.TokenPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", 0, eris.Wrap(err, "yonbip: create token request")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", 0, eris.Wrap(err, "yonbip: fetch token")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, eris.Wrap(err, "yonbip: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, eris.Errorf("yonbip: token status %d: %s", resp.StatusCode, string(body))
	}

	var decoded struct {
		Code string `json:"code"`
		Data struct {
			AccessToken string          `json:"access_token"`
			Expire      json.RawMessage `json:"expire"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", 0, eris.Wrap(err, "yonbip: decode token response")
	}
	if decoded.Code != "00000" {
		return "", 0, eris.Errorf("yonbip: token rejected: %s", string(body))
	}
	if decoded.Data.AccessToken == "" {
		return "", 0, eris.New("yonbip: token missing in response")
	}

	expire := 7200
	if len(decoded.Data.Expire) > 0 {
		// The gateway reports expire as either a number or a numeric string.
		var n int
		if err := json.Unmarshal(decoded.Data.Expire, &n); err == nil {
			expire = n
		} else {
			var str string
			if err := json.Unmarshal(decoded.Data.Expire, &str); err == nil {
				if parsed, perr := strconv.Atoi(str); perr == nil {
					expire = parsed
				}
			}
		}
	}
	return decoded.Data.AccessToken, expire, nil
}

// signature computes the self-app auth signature:
// base64(HMAC-SHA256(secret, "appKey"+key+"timestamp"+ts)).
func signature(appKey, appSecret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte("appKey" + appKey + "timestamp" + timestamp))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
