package event

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/eventhub/internal/model"
	"github.com/hitoshi/eventhub/internal/repository"
	"github.com/hitoshi/eventhub/internal/security"
	"github.com/hitoshi/eventhub/internal/validation"
)

// --- モック ---

type mockEventRepo struct {
	repository.EventRepository
	findByIDFn func(ctx context.Context, id string) (*model.Event, error)
	deleteFn   func(ctx context.Context, id string) error
}

func (m *mockEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockEventRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

// --- ヘルパー ---

type fixture struct {
	svc   *Service
	store *repository.MemoryStore
	alice *model.Principal
	bob   *model.Principal
	admin *model.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	users := store.Users()

	f := &fixture{
		svc:   NewService(store.Events(), validation.New(), security.NewContentSanitizer()),
		store: store,
	}
	f.svc.now = func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) }

	for _, p := range []struct {
		dst   **model.Principal
		email string
		role  model.Role
	}{
		{&f.admin, "admin@x.com", model.RoleAdmin},
		{&f.alice, "alice@x.com", model.RoleUser},
		{&f.bob, "bob@x.com", model.RoleUser},
	} {
		u := &model.User{ID: uuid.NewString(), Email: p.email, PasswordHash: "h", Role: p.role, FirstName: "Name"}
		if err := users.Create(context.Background(), u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
		*p.dst = model.PrincipalOf(u)
	}
	return f
}

func (f *fixture) create(t *testing.T, owner *model.Principal, in CreateInput) *model.Event {
	t.Helper()
	e, err := f.svc.Create(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return e
}

// input は固定の更新入力を返すUpdateDecoderを生成する。
func input(in UpdateInput) UpdateDecoder {
	return func(dst *UpdateInput) error {
		*dst = in
		return nil
	}
}

func validInput() CreateInput {
	return CreateInput{Title: "Jazz Night", Date: "2026-07-01T19:00", Category: "concert"}
}

func validationMessages(t *testing.T, err error) []string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != model.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	return apiErr.Errors
}

// --- Create ---

func TestCreate_SetsOwnerFromPrincipal(t *testing.T) {
	f := newFixture(t)

	e := f.create(t, f.alice, validInput())

	if e.CreatedBy != f.alice.ID {
		t.Errorf("CreatedBy = %q, want %q", e.CreatedBy, f.alice.ID)
	}
	if e.Owner == nil || e.Owner.Email != "alice@x.com" {
		t.Errorf("Owner = %+v", e.Owner)
	}
	if want := time.Date(2026, 7, 1, 19, 0, 0, 0, time.UTC); !e.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", e.Date, want)
	}
}

// TestCreate_TitleBoundaries はタイトル長の境界値（3文字・100文字は成功、2文字・101文字は失敗）を検証する。
func TestCreate_TitleBoundaries(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		title   string
		wantErr bool
	}{
		{strings.Repeat("a", 2), true},
		{strings.Repeat("a", 3), false},
		{strings.Repeat("a", 100), false},
		{strings.Repeat("a", 101), true},
		{strings.Repeat("あ", 100), false},
		{"   ", true},
	}

	for _, tt := range tests {
		in := validInput()
		in.Title = tt.title
		_, err := f.svc.Create(context.Background(), f.alice, in)
		if tt.wantErr {
			validationMessages(t, err)
		} else if err != nil {
			t.Errorf("title of %d runes: unexpected error %v", len([]rune(tt.title)), err)
		}
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	f := newFixture(t)

	msgs := validationMessages(t, func() error {
		_, err := f.svc.Create(context.Background(), f.alice, CreateInput{Category: "party"})
		return err
	}())
	want := []string{
		"title is required",
		"date is required",
		"category must be one of: concert, lecture, exhibition",
	}
	if len(msgs) != len(want) {
		t.Fatalf("messages = %v, want %v", msgs, want)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("messages[%d] = %q, want %q", i, msgs[i], want[i])
		}
	}

	in := validInput()
	in.Date = "next friday"
	msgs = validationMessages(t, func() error {
		_, err := f.svc.Create(context.Background(), f.alice, in)
		return err
	}())
	if len(msgs) != 1 || msgs[0] != "date must be a valid date" {
		t.Errorf("messages = %v", msgs)
	}
}

func TestCreate_SanitizesDescription(t *testing.T) {
	f := newFixture(t)

	in := validInput()
	in.Description = `<p onclick="x()">Hello</p><script>alert(1)</script>`
	e := f.create(t, f.alice, in)

	if e.Description != "Hello" {
		t.Errorf("Description = %q", e.Description)
	}
}

func TestCreate_PlainTextDescriptionRoundTrips(t *testing.T) {
	f := newFixture(t)

	const desc = `Rock & Roll, 5 < 7, "quoted"`
	in := validInput()
	in.Description = desc
	created := f.create(t, f.alice, in)

	got, err := f.svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != desc {
		t.Errorf("Description = %q, want %q", got.Description, desc)
	}
}

func TestCreate_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Create(context.Background(), nil, validInput()); !model.IsKind(err, model.KindAuthentication) {
		t.Errorf("got %v, want authentication error", err)
	}
}

// --- Get / List ---

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Get(context.Background(), uuid.NewString()); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestList_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, f.alice, CreateInput{Title: "Later concert", Date: "2026-09-01", Category: "concert"})
	f.create(t, f.alice, CreateInput{Title: "Early lecture", Date: "2026-08-01", Category: "lecture"})
	f.create(t, f.bob, CreateInput{Title: "Bob's concert", Date: "2026-08-15", Category: "concert"})

	all, err := f.svc.List(ctx, nil, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Title != "Early lecture" {
		t.Errorf("List() = %d events, first %q", len(all), all[0].Title)
	}

	concerts, err := f.svc.List(ctx, nil, ListFilter{Category: "concert"})
	if err != nil {
		t.Fatalf("List(category): %v", err)
	}
	if len(concerts) != 2 {
		t.Errorf("concerts = %d, want 2", len(concerts))
	}

	mine, err := f.svc.List(ctx, f.bob, ListFilter{CreatedBy: CreatedByMe})
	if err != nil {
		t.Fatalf("List(me): %v", err)
	}
	if len(mine) != 1 || mine[0].CreatedBy != f.bob.ID {
		t.Errorf("mine = %v", mine)
	}

	byAlice, err := f.svc.List(ctx, nil, ListFilter{CreatedBy: f.alice.ID, Category: "concert"})
	if err != nil {
		t.Fatalf("List(createdBy): %v", err)
	}
	if len(byAlice) != 1 {
		t.Errorf("byAlice = %d, want 1", len(byAlice))
	}
}

func TestList_RejectsUnknownFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.List(ctx, nil, ListFilter{Category: "DROP TABLE"}); !model.IsKind(err, model.KindValidation) {
		t.Errorf("unknown category: got %v", err)
	}
	if _, err := f.svc.List(ctx, nil, ListFilter{CreatedBy: "not-a-uuid"}); !model.IsKind(err, model.KindValidation) {
		t.Errorf("bad createdBy: got %v", err)
	}
	if _, err := f.svc.List(ctx, nil, ListFilter{CreatedBy: CreatedByMe}); !model.IsKind(err, model.KindAuthentication) {
		t.Errorf("me without principal: got %v", err)
	}
}

// --- Update ---

func TestUpdate_OwnerAndAdminAllowed_OthersForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, f.alice, validInput())

	if _, err := f.svc.Update(ctx, f.bob, e.ID, input(UpdateInput{Title: model.Some("Hijacked")})); !model.IsKind(err, model.KindAuthorization) {
		t.Fatalf("non-owner update: got %v, want authorization error", err)
	}

	updated, err := f.svc.Update(ctx, f.alice, e.ID, input(UpdateInput{Title: model.Some("Owner edit")}))
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Title != "Owner edit" {
		t.Errorf("Title = %q", updated.Title)
	}

	updated, err = f.svc.Update(ctx, f.admin, e.ID, input(UpdateInput{Title: model.Some("Admin edit")}))
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Title != "Admin edit" || updated.CreatedBy != f.alice.ID {
		t.Errorf("admin update changed ownership or title: %+v", updated)
	}
}

// TestUpdate_PartialSemantics は未指定フィールドの維持と任意項目の消去を検証する。
func TestUpdate_PartialSemantics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput()
	in.Description = "Bring friends"
	e := f.create(t, f.alice, in)

	// 未指定のフィールドは変更されない
	updated, err := f.svc.Update(ctx, f.alice, e.ID, input(UpdateInput{Date: model.Some("2026-12-24")}))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Jazz Night" || updated.Description != "Bring friends" || updated.Category != model.CategoryConcert {
		t.Errorf("absent fields changed: %+v", updated)
	}

	// 空文字列とnullは任意項目を消去する
	updated, err = f.svc.Update(ctx, f.alice, e.ID, input(UpdateInput{
		Description: model.Some(""),
		Category:    model.Null[string](),
	}))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Description != "" || updated.Category != "" {
		t.Errorf("optional fields not cleared: %+v", updated)
	}

	// 必須項目の消去は検証エラー
	_, err = f.svc.Update(ctx, f.alice, e.ID, input(UpdateInput{
		Title: model.Null[string](),
		Date:  model.Some(""),
	}))
	msgs := validationMessages(t, err)
	if len(msgs) != 2 {
		t.Errorf("messages = %v, want title and date", msgs)
	}

	stored, _ := f.svc.Get(ctx, e.ID)
	if stored.Title != "Jazz Night" {
		t.Errorf("failed update must not persist, Title = %q", stored.Title)
	}
}

func TestUpdate_InvalidValues(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, f.alice, validInput())

	_, err := f.svc.Update(context.Background(), f.alice, e.ID, input(UpdateInput{
		Title:    model.Some("ab"),
		Category: model.Some("festival"),
		Date:     model.Some("tomorrow"),
	}))
	if msgs := validationMessages(t, err); len(msgs) != 3 {
		t.Errorf("messages = %v, want 3", msgs)
	}
}

// TestUpdate_AuthenticationPrecedesNotFound は未認証が404より先に判定されることを検証する。
func TestUpdate_AuthenticationPrecedesNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Update(ctx, nil, uuid.NewString(), input(UpdateInput{})); !model.IsKind(err, model.KindAuthentication) {
		t.Errorf("nil principal: got %v", err)
	}
	if _, err := f.svc.Update(ctx, f.bob, uuid.NewString(), input(UpdateInput{})); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("missing event: got %v", err)
	}
}

// TestUpdate_DecodesOnlyAfterAuthorization は権限確認と存在確認の後にのみ入力を読み込むことを検証する。
func TestUpdate_DecodesOnlyAfterAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, f.alice, validInput())

	badBody := model.NewValidationError("request body must be valid JSON")
	called := 0
	decode := func(*UpdateInput) error {
		called++
		return badBody
	}

	if _, err := f.svc.Update(ctx, f.bob, e.ID, decode); !model.IsKind(err, model.KindAuthorization) {
		t.Errorf("non-owner: got %v, want authorization error", err)
	}
	if _, err := f.svc.Update(ctx, f.bob, uuid.NewString(), decode); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("missing event: got %v, want not found", err)
	}
	if _, err := f.svc.Update(ctx, nil, e.ID, decode); !model.IsKind(err, model.KindAuthentication) {
		t.Errorf("nil principal: got %v, want authentication error", err)
	}
	if called != 0 {
		t.Errorf("decoder called %d times before authorization succeeded", called)
	}

	// 権限がある場合は入力の読み込みエラーをそのまま返す
	if _, err := f.svc.Update(ctx, f.alice, e.ID, decode); err != badBody {
		t.Errorf("owner: got %v, want decode error", err)
	}
	if called != 1 {
		t.Errorf("decoder called %d times, want 1", called)
	}
}

// --- Delete ---

func TestDelete_SecondCallIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, f.alice, validInput())

	if err := f.svc.Delete(ctx, f.bob, e.ID); !model.IsKind(err, model.KindAuthorization) {
		t.Fatalf("non-owner delete: got %v", err)
	}
	if err := f.svc.Delete(ctx, f.alice, e.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if err := f.svc.Delete(ctx, f.alice, e.ID); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("second delete: got %v, want not found", err)
	}
}

func TestDelete_AdminMayDeleteAnyEvent(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, f.bob, validInput())

	if err := f.svc.Delete(context.Background(), f.admin, e.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

// TestDelete_ConcurrentRemoval_ReturnsNotFound は認可後に他のリクエストで削除された場合を検証する。
func TestDelete_ConcurrentRemoval_ReturnsNotFound(t *testing.T) {
	repo := &mockEventRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
			return &model.Event{ID: id, CreatedBy: "u1"}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			return repository.ErrNotFound
		},
	}
	svc := NewService(repo, validation.New(), security.NewContentSanitizer())

	err := svc.Delete(context.Background(), &model.Principal{ID: "u1", Role: model.RoleUser}, "e1")
	if !model.IsKind(err, model.KindNotFound) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestDelete_StoreFailure_IsInternal(t *testing.T) {
	repo := &mockEventRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
			return nil, errors.New("connection reset")
		},
	}
	svc := NewService(repo, validation.New(), security.NewContentSanitizer())

	err := svc.Delete(context.Background(), &model.Principal{ID: "u1", Role: model.RoleAdmin}, "e1")
	if err == nil || model.KindOf(err) != model.KindInternal {
		t.Errorf("got %v, want internal error", err)
	}
}
