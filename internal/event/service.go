// Package event はイベントの作成・取得・更新・削除のドメインロジックを提供する。
//
// 更新と削除は policy.Authorize を通し、作成者本人か管理者のみが実行できる。
// 作成者は常に認証主体から設定し、リクエストボディの値は使用しない。
package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/eventhub/internal/model"
	"github.com/hitoshi/eventhub/internal/policy"
	"github.com/hitoshi/eventhub/internal/repository"
	"github.com/hitoshi/eventhub/internal/security"
	"github.com/hitoshi/eventhub/internal/validation"
)

// CreatedByMe は一覧フィルタで認証主体自身を指す値。
const CreatedByMe = "me"

// CreateInput はイベント作成の入力。
type CreateInput struct {
	Title       string `json:"title" validate:"notblank,min=3,max=100"`
	Description string `json:"description"`
	Date        string `json:"date" validate:"required"`
	Category    string `json:"category" validate:"omitempty,oneof=concert lecture exhibition"`
}

// UpdateInput はイベントの部分更新の入力。
// 未指定のフィールドは変更しない。descriptionとcategoryはnullまたは空文字列で消去する。
// titleとdateは必須項目のため、nullや空文字列は検証エラーとなる。
type UpdateInput struct {
	Title       model.Optional[string] `json:"title"`
	Description model.Optional[string] `json:"description"`
	Date        model.Optional[string] `json:"date"`
	Category    model.Optional[string] `json:"category"`
}

// UpdateDecoder は更新入力をdstに読み込む。Updateは権限確認の後にのみ呼び出す。
type UpdateDecoder func(dst *UpdateInput) error

// ListFilter はイベント一覧のクエリ条件。
type ListFilter struct {
	Category  string
	CreatedBy string
}

// Service はイベント管理のサービス層。
type Service struct {
	eventRepo repository.EventRepository
	validator *validation.Validator
	sanitizer security.ContentSanitizerService
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(eventRepo repository.EventRepository, v *validation.Validator, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		eventRepo: eventRepo,
		validator: v,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Create はイベントを作成する。作成者は認証主体となる。
func (s *Service) Create(ctx context.Context, principal *model.Principal, in CreateInput) (*model.Event, error) {
	if principal == nil {
		return nil, model.NewAuthenticationRequiredError()
	}

	// 1. 入力検証
	in.Title = strings.TrimSpace(in.Title)
	in.Date = strings.TrimSpace(in.Date)
	in.Category = strings.TrimSpace(in.Category)

	msgs := s.validator.Struct(in)
	var date time.Time
	if in.Date != "" {
		d, err := validation.ParseDate(in.Date)
		if err != nil {
			msgs = append(msgs, "date must be a valid date")
		}
		date = d
	}
	if len(msgs) > 0 {
		return nil, model.NewValidationError(msgs...)
	}

	// 2. イベントを組み立てて保存
	now := s.now().UTC()
	e := &model.Event{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: s.sanitizer.Sanitize(in.Description),
		Date:        date,
		Category:    model.Category(in.Category),
		CreatedBy:   principal.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.eventRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	slog.InfoContext(ctx, "event created",
		slog.String("event_id", e.ID),
		slog.String("user_id", principal.ID),
	)

	// 3. 作成者情報付きで返す
	return s.load(ctx, e.ID)
}

// Get は指定IDのイベントを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Event, error) {
	return s.load(ctx, id)
}

// List はフィルタ条件に一致するイベントを開催日時の昇順で返す。
// categoryは許可リストの値のみ受け付ける。createdByに"me"を指定すると認証主体のイベントに絞り込む。
func (s *Service) List(ctx context.Context, principal *model.Principal, f ListFilter) ([]*model.Event, error) {
	filter := model.EventFilter{}

	if c := strings.TrimSpace(f.Category); c != "" {
		category := model.Category(c)
		if !category.Valid() {
			return nil, model.NewValidationError(
				fmt.Sprintf("category must be one of: %s", joinCategories()),
			)
		}
		filter.Category = category
	}

	switch createdBy := strings.TrimSpace(f.CreatedBy); {
	case createdBy == "":
	case createdBy == CreatedByMe:
		if principal == nil {
			return nil, model.NewAuthenticationRequiredError()
		}
		filter.CreatedBy = principal.ID
	default:
		if msgs := s.validator.Var("createdBy", createdBy, "uuid"); len(msgs) > 0 {
			return nil, model.NewValidationError(msgs...)
		}
		filter.CreatedBy = createdBy
	}

	events, err := s.eventRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// Update はイベントを部分更新する。作成者本人か管理者のみが実行できる。
// 認証、存在確認、権限確認を終えてからdecodeで入力を読み込むため、
// 不正なボディでも401、404、403が400より優先される。
func (s *Service) Update(ctx context.Context, principal *model.Principal, id string, decode UpdateDecoder) (*model.Event, error) {
	e, err := policy.Authorize(ctx, principal, policy.ActionUpdate, id, s.load)
	if err != nil {
		return nil, err
	}

	var in UpdateInput
	if err := decode(&in); err != nil {
		return nil, err
	}

	if msgs := s.apply(e, in); len(msgs) > 0 {
		return nil, model.NewValidationError(msgs...)
	}
	e.UpdatedAt = s.now().UTC()

	if err := s.eventRepo.Update(ctx, e); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewEventNotFoundError()
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	slog.InfoContext(ctx, "event updated",
		slog.String("event_id", e.ID),
		slog.String("user_id", principal.ID),
	)
	return s.load(ctx, e.ID)
}

// Delete はイベントを削除する。作成者本人か管理者のみが実行できる。
// 削除済みのIDに対しては404を返す。
func (s *Service) Delete(ctx context.Context, principal *model.Principal, id string) error {
	if _, err := policy.Authorize(ctx, principal, policy.ActionDelete, id, s.load); err != nil {
		return err
	}

	if err := s.eventRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewEventNotFoundError()
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}

	slog.InfoContext(ctx, "event deleted",
		slog.String("event_id", id),
		slog.String("user_id", principal.ID),
	)
	return nil
}

// load はイベントを取得する。存在しない場合はNotFoundのAPIErrorを返す。
func (s *Service) load(ctx context.Context, id string) (*model.Event, error) {
	e, err := s.eventRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find event: %w", err)
	}
	if e == nil {
		return nil, model.NewEventNotFoundError()
	}
	return e, nil
}

// apply は部分更新の入力をイベントに反映し、違反メッセージを返す。
func (s *Service) apply(e *model.Event, in UpdateInput) []string {
	var msgs []string

	if in.Title.Set {
		title := strings.TrimSpace(in.Title.Value)
		if in.Title.Null || title == "" {
			msgs = append(msgs, "title is required")
		} else if m := s.validator.Var("title", title, "min=3,max=100"); len(m) > 0 {
			msgs = append(msgs, m...)
		} else {
			e.Title = title
		}
	}

	if in.Description.Set {
		e.Description = ""
		if !in.Description.Null {
			e.Description = s.sanitizer.Sanitize(in.Description.Value)
		}
	}

	if in.Date.Set {
		raw := strings.TrimSpace(in.Date.Value)
		if in.Date.Null || raw == "" {
			msgs = append(msgs, "date is required")
		} else if d, err := validation.ParseDate(raw); err != nil {
			msgs = append(msgs, "date must be a valid date")
		} else {
			e.Date = d
		}
	}

	if in.Category.Set {
		c := model.Category(strings.TrimSpace(in.Category.Value))
		switch {
		case in.Category.Null || c == "":
			e.Category = ""
		case !c.Valid():
			msgs = append(msgs, fmt.Sprintf("category must be one of: %s", joinCategories()))
		default:
			e.Category = c
		}
	}

	return msgs
}

func joinCategories() string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
