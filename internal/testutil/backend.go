package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// StaticTokens is a TokenSource returning a fixed token. An empty value
// means unauthenticated.
type StaticTokens struct {
	Value string
}

// Token implements the gateway's TokenSource.
func (s StaticTokens) Token(context.Context) (string, error) {
	return s.Value, nil
}

// FakeBackend is a scriptable stand-in for the prediction/auth backend.
// Set the response fields before issuing requests; every handler records
// the request it saw for assertions.
type FakeBackend struct {
	mu sync.Mutex

	// HistoryBody is returned verbatim by GET /history with HistoryStatus
	// (default 200).
	HistoryBody   string
	HistoryStatus int

	// PredictBody is returned verbatim by POST /predict.
	PredictBody   string
	PredictStatus int

	// AuthBody is returned by POST /auth/login and /auth/signup.
	AuthBody   string
	AuthStatus int

	// LastAuthorization records the Authorization header of the most
	// recent request; LastRequest the most recent *http.Request (with
	// multipart form already parsed for /predict).
	LastAuthorization string
	LastRequest       *http.Request

	HistoryCalls int

	server *httptest.Server
}

// NewFakeBackend starts the fake backend. The server is shut down with
// the test.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	b := &FakeBackend{
		HistoryBody:   `{"items":[]}`,
		HistoryStatus: http.StatusOK,
		PredictBody:   `{"meal":"pasta"}`,
		PredictStatus: http.StatusOK,
		AuthBody:      `{"token":"test-token","user":{"id":"u1","email":"test@example.com"}}`,
		AuthStatus:    http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.record(r)
		b.HistoryCalls++
		status, body := b.HistoryStatus, b.HistoryBody
		b.mu.Unlock()
		writeBody(w, status, body)
	})
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(32 << 20)
		b.mu.Lock()
		b.record(r)
		status, body := b.PredictStatus, b.PredictBody
		b.mu.Unlock()
		writeBody(w, status, body)
	})
	authHandler := func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.record(r)
		status, body := b.AuthStatus, b.AuthBody
		b.mu.Unlock()
		writeBody(w, status, body)
	}
	mux.HandleFunc("/auth/login", authHandler)
	mux.HandleFunc("/auth/signup", authHandler)
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.record(r)
		b.mu.Unlock()
		writeBody(w, http.StatusOK, `{"user":{"id":"u1","email":"test@example.com"}}`)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.record(r)
		b.mu.Unlock()
		writeBody(w, http.StatusOK, `{"status":"ok"}`)
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the fake backend's base address.
func (b *FakeBackend) URL() string {
	return b.server.URL
}

// SetHistory replaces the history response with a JSON items envelope.
func (b *FakeBackend) SetHistory(t *testing.T, items interface{}) {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{"items": items})
	if err != nil {
		t.Fatalf("Failed to marshal history items: %v", err)
	}

	b.mu.Lock()
	b.HistoryBody = string(body)
	b.HistoryStatus = http.StatusOK
	b.mu.Unlock()
}

func (b *FakeBackend) record(r *http.Request) {
	b.LastAuthorization = r.Header.Get("Authorization")
	b.LastRequest = r
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
