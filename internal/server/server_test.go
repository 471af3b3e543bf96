package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maqua/member-lookup/internal/profile"
	"github.com/maqua/member-lookup/internal/resolve"
)

type stubBuilder struct {
	result profile.Result
	panics bool
	gotID  string
}

func (s *stubBuilder) Build(ctx context.Context, identifier string) profile.Result {
	s.gotID = identifier
	if s.panics {
		panic("boom")
	}
	return s.result
}

func postProfile(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/profile", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestProfileOK(t *testing.T) {
	stub := &stubBuilder{result: profile.Result{
		Kind: profile.KindOK,
		Profile: &profile.Profile{
			Keyword:      "C115",
			CustomerCode: "C115",
			CustomerName: "大安水站",
		},
	}}

	rec := postProfile(t, New(stub), `{"identifier":"C115"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "C115", stub.gotID)

	body := decodeBody(t, rec)
	assert.Equal(t, "OK", body["code"])
	prof, ok := body["profile"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "C115", prof["customerCode"])
	assert.Equal(t, "大安水站", prof["customerName"])
}

func TestProfileChoices(t *testing.T) {
	stub := &stubBuilder{result: profile.Result{
		Kind:    profile.KindChoices,
		Message: profile.MsgAmbiguous,
		Keyword: "大安",
		Matches: []resolve.Suggestion{
			{Code: "C115", Name: "大安水站"},
			{Code: "C220", Name: "大安中學"},
		},
	}}

	rec := postProfile(t, New(stub), `{"identifier":"大安"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "CHOICES", body["code"])
	assert.Equal(t, profile.MsgAmbiguous, body["message"])
	assert.Equal(t, "大安", body["keyword"])
	matches, ok := body["matches"].([]any)
	require.True(t, ok)
	assert.Len(t, matches, 2)
}

func TestProfileNotFound(t *testing.T) {
	stub := &stubBuilder{result: profile.Result{
		Kind:    profile.KindNotFound,
		Message: profile.MsgNoRecords,
	}}

	rec := postProfile(t, New(stub), `{"identifier":"C999"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, profile.MsgNoRecords, decodeBody(t, rec)["message"])
}

func TestProfileEmptyIdentifier(t *testing.T) {
	srv := New(&stubBuilder{})

	for _, body := range []string{`{"identifier":"  "}`, `{}`, `not json`} {
		rec := postProfile(t, srv, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.Equal(t, profile.MsgEmptyInput, decodeBody(t, rec)["message"])
	}
}

func TestProfilePanicReturns500(t *testing.T) {
	rec := postProfile(t, New(&stubBuilder{panics: true}), `{"identifier":"C115"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, profile.MsgUnexpectedError, decodeBody(t, rec)["message"])
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&stubBuilder{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestIndexServed(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&stubBuilder{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "會員查詢")
}

func TestRequestIDHeader(t *testing.T) {
	srv := New(&stubBuilder{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	// A caller-supplied id is echoed back unchanged.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
