// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/eventhub/internal/middleware"
	"github.com/hitoshi/eventhub/internal/model"
)

// maxRequestBodySize はリクエストボディの上限（1MiB）。
const maxRequestBodySize = 1 << 20

const birthDateLayout = "2006-01-02"

// userResponse はユーザーのAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"firstName,omitempty"`
	LastName   string    `json:"lastName,omitempty"`
	MiddleName string    `json:"middleName,omitempty"`
	Email      string    `json:"email"`
	Gender     string    `json:"gender,omitempty"`
	BirthDate  *string   `json:"birthDate,omitempty"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ownerResponse はイベント作成者の公開情報。
type ownerResponse struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email"`
}

// eventResponse はイベントのAPIレスポンス。
type eventResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Date        time.Time      `json:"date"`
	Category    string         `json:"category,omitempty"`
	CreatedBy   string         `json:"createdBy"`
	Owner       *ownerResponse `json:"owner,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// messageResponse はメッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

func toUserResponse(u *model.User) userResponse {
	resp := userResponse{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		MiddleName: u.MiddleName,
		Email:      u.Email,
		Gender:     string(u.Gender),
		Role:       string(u.Role),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
	if u.BirthDate != nil {
		bd := u.BirthDate.Format(birthDateLayout)
		resp.BirthDate = &bd
	}
	return resp
}

func toUserResponses(users []*model.User) []userResponse {
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	return resp
}

func toEventResponse(e *model.Event) eventResponse {
	resp := eventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date,
		Category:    string(e.Category),
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.Owner != nil {
		resp.Owner = &ownerResponse{
			FirstName: e.Owner.FirstName,
			LastName:  e.Owner.LastName,
			Email:     e.Owner.Email,
		}
	}
	return resp
}

func toEventResponses(events []*model.Event) []eventResponse {
	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e))
	}
	return resp
}

// responder はハンドラー共通のレスポンス書き込みを提供する。
type responder struct {
	errs *middleware.ErrorTranslator
}

// writeError はエラーを統一フォーマットで返す。変換はErrorTranslatorに委譲する。
func (rp responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	rp.errs.Write(w, r, err)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをdstにデコードする。
// 不正なJSONや上限超過は検証エラーとして返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return model.NewValidationError("request body is required")
		case errors.As(err, &maxErr):
			return model.NewValidationError("request body is too large")
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return model.NewValidationError(fmt.Sprintf("%s has an invalid type", typeErr.Field))
		default:
			return model.NewValidationError("request body must be valid JSON")
		}
	}
	return nil
}
