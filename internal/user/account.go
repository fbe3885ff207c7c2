package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/eventhub/internal/model"
	"github.com/hitoshi/eventhub/internal/validation"
)

const (
	// MinPasswordLength はパスワードの最小バイト数。
	MinPasswordLength = 6
	// MaxPasswordLength はbcryptが扱える最大バイト数。これを超える部分は無視されるため拒否する。
	MaxPasswordLength = 72
)

// PasswordHasher はパスワードのハッシュ化インターフェース。
type PasswordHasher interface {
	Hash(raw string) (string, error)
}

// ProfileInput は登録時に任意で指定できるプロフィール項目。
type ProfileInput struct {
	FirstName  *string `json:"firstName" validate:"omitempty,min=2,max=50"`
	LastName   *string `json:"lastName" validate:"omitempty,min=2,max=50"`
	MiddleName *string `json:"middleName" validate:"omitempty,min=2,max=50"`
	Gender     *string `json:"gender" validate:"omitempty,oneof=male female other"`
	BirthDate  *string `json:"birthDate"`
}

// AccountInput はアカウント作成の入力。自己登録と管理者による作成で共通。
type AccountInput struct {
	ProfileInput
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
}

// NewAccount は入力を検証し、パスワードをハッシュ化したユーザーを組み立てる。
// ロールは設定しない。違反がある場合はすべてのメッセージを含む検証エラーを返す。
func NewAccount(v *validation.Validator, hasher PasswordHasher, in AccountInput, now time.Time) (*model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = trimOrNil(in.FirstName)
	in.LastName = trimOrNil(in.LastName)
	in.MiddleName = trimOrNil(in.MiddleName)
	in.Gender = trimOrNil(in.Gender)
	in.BirthDate = trimOrNil(in.BirthDate)

	msgs := v.Struct(in)
	if msg := passwordMessage(in.Password); msg != "" {
		msgs = append(msgs, msg)
	}

	var birthDate *time.Time
	if in.BirthDate != nil {
		bd, msg := parseBirthDate(*in.BirthDate, now)
		if msg != "" {
			msgs = append(msgs, msg)
		}
		birthDate = bd
	}

	if len(msgs) > 0 {
		return nil, model.NewValidationError(msgs...)
	}

	hash, err := hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	return &model.User{
		ID:           uuid.NewString(),
		FirstName:    deref(in.FirstName),
		LastName:     deref(in.LastName),
		MiddleName:   deref(in.MiddleName),
		Email:        in.Email,
		PasswordHash: hash,
		Gender:       model.Gender(deref(in.Gender)),
		BirthDate:    birthDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func passwordMessage(raw string) string {
	switch {
	case raw == "":
		return "password is required"
	case len(raw) < MinPasswordLength:
		return fmt.Sprintf("password must be at least %d characters", MinPasswordLength)
	case len(raw) > MaxPasswordLength:
		return fmt.Sprintf("password must be at most %d bytes", MaxPasswordLength)
	default:
		return ""
	}
}

// parseBirthDate は生年月日を日単位に丸めて返す。未来日はエラーメッセージを返す。
func parseBirthDate(raw string, now time.Time) (*time.Time, string) {
	t, err := validation.ParseDate(raw)
	if err != nil {
		return nil, "birthDate must be a valid date"
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if !day.Before(now) {
		return nil, "birthDate must be in the past"
	}
	return &day, ""
}

func trimOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
