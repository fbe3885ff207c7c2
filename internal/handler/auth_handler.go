package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/eventhub/internal/middleware"
	"github.com/hitoshi/eventhub/internal/model"
	"github.com/hitoshi/eventhub/internal/user"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in user.AccountInput) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (string, error)
	CurrentUser(ctx context.Context, principal *model.Principal) (*model.User, error)
}

// AuthHandler は登録・ログイン関連のHTTPハンドラー。
type AuthHandler struct {
	responder
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, errs *middleware.ErrorTranslator) *AuthHandler {
	return &AuthHandler{
		responder: responder{errs: errs},
		service:   service,
	}
}

type registerResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// Register はユーザーを登録し、トークンとともに返す。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req user.AccountInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, token, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message: "user registered successfully",
		Token:   token,
		User:    toUserResponse(u),
	})
}

// Login はメールアドレスとパスワードで認証し、トークンを返す。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message: "login successful",
		Token:   token,
	})
}

// Me は現在の認証ユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.CurrentUser(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}
