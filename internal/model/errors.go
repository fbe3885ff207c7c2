// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind はドメインエラーの種別。HTTPステータスへの変換はハンドラー層で一元的に行う。
type ErrorKind string

const (
	// KindValidation は入力値の検証エラー（400）。
	KindValidation ErrorKind = "validation"
	// KindConflict は一意制約違反（メール重複など）。検証エラーの一種として400で返す。
	KindConflict ErrorKind = "conflict"
	// KindAuthentication はトークンの欠落・不正・期限切れ（401）。
	KindAuthentication ErrorKind = "authentication"
	// KindAuthorization は認証済みだが権限がない場合（403）。
	KindAuthorization ErrorKind = "authorization"
	// KindNotFound は対象リソースが存在しない場合（404）。
	KindNotFound ErrorKind = "not_found"
	// KindInternal は想定外のエラー（500）。
	KindInternal ErrorKind = "internal"
)

// APIError は統一エラーフォーマットを表す。
// Errorsは検証エラーの場合のみ設定される。
type APIError struct {
	Kind    ErrorKind
	Message string
	Errors  []string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, strings.Join(e.Errors, "; "))
}

// KindOf はエラーの種別を返す。APIErrorでない場合はKindInternal。
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// IsKind はエラーが指定した種別のAPIErrorかどうかを返す。
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

const (
	msgValidationFailed   = "validation failed"
	msgInvalidCredentials = "invalid credentials"
)

// NewValidationError は検証エラーを生成する。messagesには違反したルールごとのメッセージを渡す。
func NewValidationError(messages ...string) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Message: msgValidationFailed,
		Errors:  messages,
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Kind:    KindConflict,
		Message: msgValidationFailed,
		Errors:  []string{"email is already in use"},
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレスの存在有無を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Kind:    KindValidation,
		Message: msgInvalidCredentials,
		Errors:  []string{msgInvalidCredentials},
	}
}

// NewAuthenticationRequiredError はトークン未提示の場合のエラーを生成する。
func NewAuthenticationRequiredError() *APIError {
	return &APIError{
		Kind:    KindAuthentication,
		Message: "authentication required",
	}
}

// NewAuthenticationFailedError はトークン検証失敗のエラーを生成する。
// 署名不正・期限切れ・ユーザー不在を区別しない。
func NewAuthenticationFailedError() *APIError {
	return &APIError{
		Kind:    KindAuthentication,
		Message: "authentication failed",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Kind:    KindAuthorization,
		Message: "insufficient permissions",
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。resourceには"event"などを渡す。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewEventNotFoundError はイベント未検出エラーを生成する。
func NewEventNotFoundError() *APIError {
	return NewNotFoundError("event")
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return NewNotFoundError("user")
}
