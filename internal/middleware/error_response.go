package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/eventhub/internal/model"
)

const msgInternalError = "internal server error"

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// Errorsは検証エラーの場合のみ含まれる。
type ErrorResponseBody struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// ErrorRecorder はエラー種別ごとの件数を記録するインターフェース。metrics.Collectorが実装する。
type ErrorRecorder interface {
	RecordAPIError(kind string)
}

// committer はレスポンスがすでに送信済みかどうかを返すResponseWriter。
type committer interface {
	Committed() bool
}

// StatusFor はエラー種別に対応するHTTPステータスコードを返す。
func StatusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation, model.KindConflict:
		return http.StatusBadRequest
	case model.KindAuthentication:
		return http.StatusUnauthorized
	case model.KindAuthorization:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ErrorTranslator はドメインエラーをHTTPレスポンスに変換する唯一の経路。
// ハンドラーと認証・認可ミドルウェアはすべてここを通してエラーを返す。
type ErrorTranslator struct {
	recorder ErrorRecorder
}

// NewErrorTranslator はErrorTranslatorを生成する。recorderはnilでもよい。
func NewErrorTranslator(recorder ErrorRecorder) *ErrorTranslator {
	return &ErrorTranslator{recorder: recorder}
}

// Write はエラーを統一フォーマットで書き込む。
// APIErrorでないエラーは500とし、詳細はログにのみ記録する。
// レスポンスが送信済みの場合はログのみ出力し、何も書き込まない。
func (t *ErrorTranslator) Write(w http.ResponseWriter, r *http.Request, err error) {
	if c, ok := w.(committer); ok && c.Committed() {
		slog.ErrorContext(r.Context(), "error after response was committed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		return
	}

	kind := model.KindOf(err)
	if t != nil && t.recorder != nil {
		t.recorder.RecordAPIError(string(kind))
	}

	if kind == model.KindInternal {
		slog.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		WriteInternalServerError(w)
		return
	}

	var apiErr *model.APIError
	errors.As(err, &apiErr)
	WriteErrorResponse(w, StatusFor(kind), apiErr.Message, apiErr.Errors)
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// detailsが空の場合はerrorsフィールドを省略する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string, details []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Success: false,
		Message: message,
		Errors:  details,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, msgInternalError, nil)
}
