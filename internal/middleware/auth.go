// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/eventhub/internal/model"
	"github.com/hitoshi/eventhub/internal/policy"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証主体を格納するためのキー。
var principalContextKey = contextKey("principal")

// Authenticator はベアラートークンの検証に必要なインターフェース。auth.Serviceが実装する。
// 空のトークンにはKindAuthenticationのエラーを返すこと。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Principal, error)
}

// bearerToken はAuthorizationヘッダーからトークンを取り出す。
// スキーム名は大文字小文字を区別しない。ヘッダーがない場合はokがfalse。
func bearerToken(r *http.Request) (token string, ok bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		// ヘッダーはあるが形式が不正。空トークンとして検証に回す
		return "", true
	}
	return strings.TrimSpace(value), true
}

// NewAuthMiddleware はベアラートークンを検証し、認証主体をリクエストコンテキストに注入する
// ミドルウェアを返す。ヘッダーがない場合は401 "authentication required"、
// 検証に失敗した場合は401 "authentication failed" を返す。
func NewAuthMiddleware(authn Authenticator, errs *ErrorTranslator) func(next http.Handler) http.Handler {
	return newAuthMiddleware(authn, errs, true)
}

// NewOptionalAuthMiddleware はヘッダーがないリクエストをそのまま通すNewAuthMiddleware。
// ヘッダーが提示された場合は検証し、失敗すれば401を返す。公開ルートで使用する。
func NewOptionalAuthMiddleware(authn Authenticator, errs *ErrorTranslator) func(next http.Handler) http.Handler {
	return newAuthMiddleware(authn, errs, false)
}

func newAuthMiddleware(authn Authenticator, errs *ErrorTranslator, required bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Authorizationヘッダーからトークンを取得
			token, present := bearerToken(r)
			if !present && !required {
				next.ServeHTTP(w, r)
				return
			}
			if present && token == "" {
				errs.Write(w, r, model.NewAuthenticationFailedError())
				return
			}

			// 2. トークンを検証し、認証主体を解決（空トークンは"authentication required"となる）
			principal, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				errs.Write(w, r, err)
				return
			}

			// 3. 認証主体をコンテキストに注入
			if a, ok := w.(userAnnotator); ok {
				a.setUserID(principal.ID)
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole は認証主体が指定ロールを持つ場合のみ通過させるミドルウェアを返す。
// NewAuthMiddlewareの後に配置する。
func RequireRole(role model.Role, errs *ErrorTranslator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := policy.CheckRole(PrincipalFromContext(r.Context()), role); err != nil {
				errs.Write(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext はリクエストコンテキストから認証主体を取得する。
// 認証ミドルウェアを通過していない場合はnilを返す。
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(principalContextKey).(*model.Principal)
	return p
}

// ContextWithPrincipal はコンテキストに認証主体を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
