// Package auth はパスワード認証、ベアラートークンの発行と検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/eventhub/internal/model"
	"github.com/hitoshi/eventhub/internal/user"
	"github.com/hitoshi/eventhub/internal/validation"
)

// 認証失敗の理由。メトリクスのラベルとして使用する。
const (
	ReasonMissingToken       = "missing_token"
	ReasonInvalidToken       = "invalid_token"
	ReasonStaleIdentity      = "stale_identity"
	ReasonInvalidCredentials = "invalid_credentials"
)

// UserStore は認証サービスが必要とするユーザーリポジトリの部分集合。
type UserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	CreateBootstrapped(ctx context.Context, user *model.User) error
}

// Recorder は認証イベントを記録するインターフェース。metrics.Collectorが実装する。
type Recorder interface {
	RecordAuthFailure(reason string)
	RecordRegistration(role string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthFailure(string)  {}
func (nopRecorder) RecordRegistration(string) {}

// Service は登録、ログイン、トークン認証のビジネスロジックを提供する。
type Service struct {
	users     UserStore
	hasher    *PasswordHasher
	tokens    *TokenIssuer
	validator *validation.Validator
	recorder  Recorder
	now       func() time.Time
}

// NewService はServiceを生成する。recorderがnilの場合は記録しない。
func NewService(
	users UserStore,
	hasher *PasswordHasher,
	tokens *TokenIssuer,
	v *validation.Validator,
	recorder Recorder,
) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		validator: v,
		recorder:  recorder,
		now:       time.Now,
	}
}

// Register はユーザーを登録し、自動ログイン用のトークンとともに返す。
// 最初に登録されたユーザーは管理者、以降は一般ユーザーとなる。
// 入力不備とメールアドレス重複はどちらも検証エラーとして返す。
func (s *Service) Register(ctx context.Context, in user.AccountInput) (*model.User, string, error) {
	// 1. 入力検証とパスワードのハッシュ化
	u, err := user.NewAccount(s.validator, s.hasher, in, s.now())
	if err != nil {
		return nil, "", err
	}

	// 2. メールアドレスの重複確認（同時登録は一意制約で検出する）
	existing, err := s.users.FindByEmail(ctx, u.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, "", model.NewDuplicateEmailError()
	}

	// 3. ロールを決定して作成
	if err := s.users.CreateBootstrapped(ctx, u); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, "", apiErr
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	s.recorder.RecordRegistration(string(u.Role))
	slog.InfoContext(ctx, "user registered",
		slog.String("user_id", u.ID),
		slog.String("role", string(u.Role)),
	)

	// 4. トークンを発行
	token, _, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, "", err
	}

	return u, token, nil
}

// Login はメールアドレスとパスワードを照合し、トークンを発行する。
// 未登録のメールアドレスとパスワード不一致は同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)

	var msgs []string
	if email == "" {
		msgs = append(msgs, "email is required")
	}
	if password == "" {
		msgs = append(msgs, "password is required")
	}
	if len(msgs) > 0 {
		return "", model.NewValidationError(msgs...)
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find user by email: %w", err)
	}

	if u == nil {
		s.hasher.VerifyDummy(password)
		s.recorder.RecordAuthFailure(ReasonInvalidCredentials)
		return "", model.NewInvalidCredentialsError()
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		s.recorder.RecordAuthFailure(ReasonInvalidCredentials)
		return "", model.NewInvalidCredentialsError()
	}

	token, _, err := s.tokens.Issue(u.ID)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "user logged in", slog.String("user_id", u.ID))
	return token, nil
}

// Authenticate はベアラートークンを検証し、参照先のユーザーを認証主体として返す。
// 署名不正、期限切れ、ユーザー不在はすべて同じ401エラーになる。
// ストアの障害は内部エラーとしてそのまま返す。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Principal, error) {
	if token == "" {
		s.recorder.RecordAuthFailure(ReasonMissingToken)
		return nil, model.NewAuthenticationRequiredError()
	}

	userID, err := s.tokens.Parse(token)
	if err != nil {
		s.recorder.RecordAuthFailure(ReasonInvalidToken)
		return nil, model.NewAuthenticationFailedError()
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		s.recorder.RecordAuthFailure(ReasonStaleIdentity)
		return nil, model.NewAuthenticationFailedError()
	}

	return model.PrincipalOf(u), nil
}

// CurrentUser は認証主体に対応するユーザーを返す。
func (s *Service) CurrentUser(ctx context.Context, principal *model.Principal) (*model.User, error) {
	if principal == nil {
		return nil, model.NewAuthenticationRequiredError()
	}

	u, err := s.users.FindByID(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.NewAuthenticationFailedError()
	}
	return u, nil
}
