// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/eventhub/internal/model"
	"github.com/hitoshi/eventhub/internal/policy"
	"github.com/hitoshi/eventhub/internal/repository"
	"github.com/hitoshi/eventhub/internal/validation"
)

// CreateInput は管理者によるユーザー作成の入力。Roleが空の場合はRoleUser。
type CreateInput struct {
	AccountInput
	Role string `json:"role"`
}

// ProfileUpdate はプロフィールの部分更新。
// 未指定のフィールドは変更せず、nullまたは空文字列の場合は値を消去する。
type ProfileUpdate struct {
	FirstName  model.Optional[string] `json:"firstName"`
	LastName   model.Optional[string] `json:"lastName"`
	MiddleName model.Optional[string] `json:"middleName"`
	Gender     model.Optional[string] `json:"gender"`
	BirthDate  model.Optional[string] `json:"birthDate"`
}

// Service はユーザー管理のサービス層。
// 一覧、作成、ロール変更は管理者のみ、プロフィールは本人のみが操作できる。
type Service struct {
	userRepo  repository.UserRepository
	hasher    PasswordHasher
	validator *validation.Validator
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, hasher PasswordHasher, v *validation.Validator) *Service {
	return &Service{
		userRepo:  userRepo,
		hasher:    hasher,
		validator: v,
		now:       time.Now,
	}
}

// List は全ユーザーを返す。
func (s *Service) List(ctx context.Context, principal *model.Principal) ([]*model.User, error) {
	if err := policy.CheckRole(principal, model.RoleAdmin); err != nil {
		return nil, err
	}

	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Create は指定ロールでユーザーを作成する。最初のユーザー判定は行わない。
func (s *Service) Create(ctx context.Context, principal *model.Principal, in CreateInput) (*model.User, error) {
	if err := policy.CheckRole(principal, model.RoleAdmin); err != nil {
		return nil, err
	}

	in.Role = strings.TrimSpace(in.Role)
	if msgs := s.validator.Var("role", in.Role, "omitempty,oneof=user admin"); len(msgs) > 0 {
		return nil, model.NewValidationError(msgs...)
	}

	u, err := NewAccount(s.validator, s.hasher, in.AccountInput, s.now())
	if err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, u.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	u.Role = model.RoleUser
	if in.Role != "" {
		u.Role = model.Role(in.Role)
	}

	if err := s.userRepo.Create(ctx, u); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.InfoContext(ctx, "user created by admin",
		slog.String("user_id", u.ID),
		slog.String("role", string(u.Role)),
		slog.String("admin_id", principal.ID),
	)
	return u, nil
}

// UpdateRole はユーザーのロールを変更する。
func (s *Service) UpdateRole(ctx context.Context, principal *model.Principal, id, role string) (*model.User, error) {
	if err := policy.CheckRole(principal, model.RoleAdmin); err != nil {
		return nil, err
	}

	role = strings.TrimSpace(role)
	if msgs := s.validator.Var("role", role, "required,oneof=user admin"); len(msgs) > 0 {
		return nil, model.NewValidationError(msgs...)
	}

	if err := s.userRepo.UpdateRole(ctx, id, model.Role(role)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	slog.InfoContext(ctx, "user role changed",
		slog.String("user_id", id),
		slog.String("role", role),
		slog.String("admin_id", principal.ID),
	)
	return s.find(ctx, id)
}

// GetProfile は認証主体自身のユーザー情報を返す。
func (s *Service) GetProfile(ctx context.Context, principal *model.Principal) (*model.User, error) {
	if principal == nil {
		return nil, model.NewAuthenticationRequiredError()
	}
	return s.find(ctx, principal.ID)
}

// UpdateProfile は認証主体自身の氏名・性別・生年月日を更新する。
// メールアドレスとロールはこの操作では変更できない。
func (s *Service) UpdateProfile(ctx context.Context, principal *model.Principal, in ProfileUpdate) (*model.User, error) {
	if principal == nil {
		return nil, model.NewAuthenticationRequiredError()
	}

	u, err := s.find(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var msgs []string

	applyName := func(field string, opt model.Optional[string], dst *string) {
		if !opt.Set {
			return
		}
		v := strings.TrimSpace(opt.Value)
		if opt.Null || v == "" {
			*dst = ""
			return
		}
		if m := s.validator.Var(field, v, "min=2,max=50"); len(m) > 0 {
			msgs = append(msgs, m...)
			return
		}
		*dst = v
	}
	applyName("firstName", in.FirstName, &u.FirstName)
	applyName("lastName", in.LastName, &u.LastName)
	applyName("middleName", in.MiddleName, &u.MiddleName)

	if in.Gender.Set {
		g := strings.TrimSpace(in.Gender.Value)
		switch {
		case in.Gender.Null || g == "":
			u.Gender = ""
		default:
			if m := s.validator.Var("gender", g, "oneof=male female other"); len(m) > 0 {
				msgs = append(msgs, m...)
			} else {
				u.Gender = model.Gender(g)
			}
		}
	}

	if in.BirthDate.Set {
		raw := strings.TrimSpace(in.BirthDate.Value)
		if in.BirthDate.Null || raw == "" {
			u.BirthDate = nil
		} else {
			bd, msg := parseBirthDate(raw, now)
			if msg != "" {
				msgs = append(msgs, msg)
			} else {
				u.BirthDate = bd
			}
		}
	}

	if len(msgs) > 0 {
		return nil, model.NewValidationError(msgs...)
	}

	u.UpdatedAt = now.UTC()
	if err := s.userRepo.UpdateProfile(ctx, u); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return u, nil
}

func (s *Service) find(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}
