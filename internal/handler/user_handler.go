package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/eventhub/internal/middleware"
	"github.com/hitoshi/eventhub/internal/model"
	"github.com/hitoshi/eventhub/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	List(ctx context.Context, principal *model.Principal) ([]*model.User, error)
	Create(ctx context.Context, principal *model.Principal, in user.CreateInput) (*model.User, error)
	UpdateRole(ctx context.Context, principal *model.Principal, id, role string) (*model.User, error)
	GetProfile(ctx context.Context, principal *model.Principal) (*model.User, error)
	UpdateProfile(ctx context.Context, principal *model.Principal, in user.ProfileUpdate) (*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	responder
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, errs *middleware.ErrorTranslator) *UserHandler {
	return &UserHandler{
		responder: responder{errs: errs},
		service:   service,
	}
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// List は全ユーザーを返す。
// GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponses(users))
}

// Create はロールを指定してユーザーを作成する。
// POST /users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req user.CreateInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.service.Create(r.Context(), middleware.PrincipalFromContext(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// UpdateRole はユーザーのロールを変更する。
// PATCH /users/{id}/role
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.service.UpdateRole(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// GetProfile は自身のプロフィールを返す。
// GET /users/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetProfile(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// UpdateProfile は自身のプロフィールを部分更新する。
// PATCH /users/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req user.ProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), middleware.PrincipalFromContext(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}
