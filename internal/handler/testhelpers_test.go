package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/eventhub/internal/event"
	"github.com/hitoshi/eventhub/internal/middleware"
	"github.com/hitoshi/eventhub/internal/model"
	"github.com/hitoshi/eventhub/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn    func(ctx context.Context, in user.AccountInput) (*model.User, string, error)
	loginFn       func(ctx context.Context, email, password string) (string, error)
	currentUserFn func(ctx context.Context, p *model.Principal) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, in user.AccountInput) (*model.User, string, error) {
	return m.registerFn(ctx, in)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (string, error) {
	return m.loginFn(ctx, email, password)
}

func (m *mockAuthService) CurrentUser(ctx context.Context, p *model.Principal) (*model.User, error) {
	return m.currentUserFn(ctx, p)
}

type mockEventService struct {
	createFn func(ctx context.Context, p *model.Principal, in event.CreateInput) (*model.Event, error)
	getFn    func(ctx context.Context, id string) (*model.Event, error)
	listFn   func(ctx context.Context, p *model.Principal, f event.ListFilter) ([]*model.Event, error)
	updateFn func(ctx context.Context, p *model.Principal, id string, decode event.UpdateDecoder) (*model.Event, error)
	deleteFn func(ctx context.Context, p *model.Principal, id string) error
}

func (m *mockEventService) Create(ctx context.Context, p *model.Principal, in event.CreateInput) (*model.Event, error) {
	return m.createFn(ctx, p, in)
}

func (m *mockEventService) Get(ctx context.Context, id string) (*model.Event, error) {
	return m.getFn(ctx, id)
}

func (m *mockEventService) List(ctx context.Context, p *model.Principal, f event.ListFilter) ([]*model.Event, error) {
	return m.listFn(ctx, p, f)
}

func (m *mockEventService) Update(ctx context.Context, p *model.Principal, id string, decode event.UpdateDecoder) (*model.Event, error) {
	return m.updateFn(ctx, p, id, decode)
}

func (m *mockEventService) Delete(ctx context.Context, p *model.Principal, id string) error {
	return m.deleteFn(ctx, p, id)
}

type mockUserService struct {
	listFn          func(ctx context.Context, p *model.Principal) ([]*model.User, error)
	createFn        func(ctx context.Context, p *model.Principal, in user.CreateInput) (*model.User, error)
	updateRoleFn    func(ctx context.Context, p *model.Principal, id, role string) (*model.User, error)
	getProfileFn    func(ctx context.Context, p *model.Principal) (*model.User, error)
	updateProfileFn func(ctx context.Context, p *model.Principal, in user.ProfileUpdate) (*model.User, error)
}

func (m *mockUserService) List(ctx context.Context, p *model.Principal) ([]*model.User, error) {
	return m.listFn(ctx, p)
}

func (m *mockUserService) Create(ctx context.Context, p *model.Principal, in user.CreateInput) (*model.User, error) {
	return m.createFn(ctx, p, in)
}

func (m *mockUserService) UpdateRole(ctx context.Context, p *model.Principal, id, role string) (*model.User, error) {
	return m.updateRoleFn(ctx, p, id, role)
}

func (m *mockUserService) GetProfile(ctx context.Context, p *model.Principal) (*model.User, error) {
	return m.getProfileFn(ctx, p)
}

func (m *mockUserService) UpdateProfile(ctx context.Context, p *model.Principal, in user.ProfileUpdate) (*model.User, error) {
	return m.updateProfileFn(ctx, p, in)
}

type fakePinger struct {
	err error
}

func (f fakePinger) PingContext(ctx context.Context) error {
	return f.err
}

var (
	_ AuthServiceInterface  = (*mockAuthService)(nil)
	_ EventServiceInterface = (*mockEventService)(nil)
	_ UserServiceInterface  = (*mockUserService)(nil)
)

// --- テストヘルパー ---

var (
	testAdmin  = &model.Principal{ID: "11111111-1111-1111-1111-111111111111", Role: model.RoleAdmin}
	testMember = &model.Principal{ID: "22222222-2222-2222-2222-222222222222", Role: model.RoleUser}
)

func testErrors() *middleware.ErrorTranslator {
	return middleware.NewErrorTranslator(nil)
}

// withPrincipal はテスト用にリクエストコンテキストへ認証主体を注入するヘルパー。
func withPrincipal(r *http.Request, p *model.Principal) *http.Request {
	return r.WithContext(middleware.ContextWithPrincipal(r.Context(), p))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseErrorBody はレスポンスボディを統一エラーフォーマットとしてパースする。
func parseErrorBody(t *testing.T, w *httptest.ResponseRecorder) (middleware.ErrorResponseBody, map[string]json.RawMessage) {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error response: %v\nraw: %s", err, w.Body.String())
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body, raw
}

// decodeBody はレスポンスボディをvにデコードする。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
}
