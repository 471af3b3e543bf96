package yonbip

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFetchAndSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "app-key", q.Get("appKey"))
		require.NotEmpty(t, q.Get("timestamp"))

		mac := hmac.New(sha256.New, []byte("app-secret"))
		mac.Write([]byte("appKey" + q.Get("appKey") + "timestamp" + q.Get("timestamp")))
		want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		assert.Equal(t, want, q.Get("signature"))

		_, _ = w.Write([]byte(`{"code":"00000","data":{"access_token":"tok-abc","expire":7200}}`))
	}))
	defer srv.Close()

	tokens := NewTokenService(TokenConfig{
		AppKey:    "app-key",
		AppSecret: "app-secret",
		TokenURL:  srv.URL,
		TokenPath: "/getAccessToken",
	})

	token, err := tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
}

func TestTokenCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"code":"00000","data":{"access_token":"tok-1","expire":7200}}`))
	}))
	defer srv.Close()

	tokens := NewTokenService(TokenConfig{TokenURL: srv.URL})
	for range 3 {
		_, err := tokens.Token(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenRefreshAfterExpiry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"code":"00000","data":{"access_token":"tok-1","expire":120}}`))
	}))
	defer srv.Close()

	svc := NewTokenService(TokenConfig{TokenURL: srv.URL}).(*tokenService)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Token(context.Background())
	require.NoError(t, err)

	// expire=120 keeps a 60s grace window; past it the token refetches.
	now = now.Add(90 * time.Second)
	_, err = svc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"40001","message":"bad signature"}`))
	}))
	defer srv.Close()

	tokens := NewTokenService(TokenConfig{TokenURL: srv.URL})
	_, err := tokens.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token rejected")
}

func TestTokenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"00000","data":{}}`))
	}))
	defer srv.Close()

	tokens := NewTokenService(TokenConfig{TokenURL: srv.URL})
	_, err := tokens.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token missing")
}
