package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hitoshi/eventhub/internal/model"
)

// --- モック ---

type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, token string) (*model.Principal, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*model.Principal, error) {
	if token == "" {
		return nil, model.NewAuthenticationRequiredError()
	}
	return m.authenticateFn(ctx, token)
}

type countingErrorRecorder struct {
	mu    sync.Mutex
	kinds []string
}

func (c *countingErrorRecorder) RecordAPIError(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
}

var _ Authenticator = (*mockAuthenticator)(nil)
var _ ErrorRecorder = (*countingErrorRecorder)(nil)

// --- ヘルパー ---

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) (ErrorResponseBody, map[string]json.RawMessage) {
	t.Helper()
	var body ErrorResponseBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v\nraw: %s", err, w.Body.String())
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	return body, raw
}
