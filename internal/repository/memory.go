package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/eventhub/internal/model"
)

// MemoryStore はプロセス内メモリを使用したストア。ローカル開発とテスト用。
// ユーザーとイベントを1つのミューテックスで保護する。
type MemoryStore struct {
	mu sync.RWMutex

	usersByID    map[string]*model.User
	usersByEmail map[string]*model.User
	userOrder    []string

	events map[string]*model.Event
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		usersByID:    make(map[string]*model.User),
		usersByEmail: make(map[string]*model.User),
		events:       make(map[string]*model.Event),
	}
}

// Users はユーザーリポジトリを返す。
func (s *MemoryStore) Users() *MemoryUserRepo {
	return &MemoryUserRepo{store: s}
}

// Events はイベントリポジトリを返す。
func (s *MemoryStore) Events() *MemoryEventRepo {
	return &MemoryEventRepo{store: s}
}

// PingContext は常に成功する。
func (s *MemoryStore) PingContext(ctx context.Context) error {
	return ctx.Err()
}

// ---------- Users ----------

// MemoryUserRepo はMemoryStoreを使用したユーザーリポジトリ。
type MemoryUserRepo struct {
	store *MemoryStore
}

func copyUser(u *model.User) *model.User {
	cp := *u
	if u.BirthDate != nil {
		bd := *u.BirthDate
		cp.BirthDate = &bd
	}
	return &cp
}

func (r *MemoryUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	u, ok := r.store.usersByID[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (r *MemoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	u, ok := r.store.usersByEmail[email]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (r *MemoryUserRepo) List(ctx context.Context) ([]*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	users := make([]*model.User, 0, len(r.store.userOrder))
	for _, id := range r.store.userOrder {
		users = append(users, copyUser(r.store.usersByID[id]))
	}
	return users, nil
}

// CreateBootstrapped はロック内でユーザー数を確認してロールを決定し、作成する。
func (r *MemoryUserRepo) CreateBootstrapped(ctx context.Context, user *model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user.Role = model.RoleUser
	if len(r.store.usersByID) == 0 {
		user.Role = model.RoleAdmin
	}
	return r.insertLocked(user)
}

func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.insertLocked(user)
}

func (r *MemoryUserRepo) insertLocked(user *model.User) error {
	if _, exists := r.store.usersByEmail[user.Email]; exists {
		return model.NewDuplicateEmailError()
	}

	cp := copyUser(user)
	r.store.usersByID[cp.ID] = cp
	r.store.usersByEmail[cp.Email] = cp
	r.store.userOrder = append(r.store.userOrder, cp.ID)
	return nil
}

func (r *MemoryUserRepo) UpdateRole(ctx context.Context, id string, role model.Role) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	u, ok := r.store.usersByID[id]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	u, ok := r.store.usersByID[user.ID]
	if !ok {
		return ErrNotFound
	}
	updated := copyUser(user)
	u.FirstName = updated.FirstName
	u.LastName = updated.LastName
	u.MiddleName = updated.MiddleName
	u.Gender = updated.Gender
	u.BirthDate = updated.BirthDate
	u.UpdatedAt = updated.UpdatedAt
	return nil
}

// ---------- Events ----------

// MemoryEventRepo はMemoryStoreを使用したイベントリポジトリ。
type MemoryEventRepo struct {
	store *MemoryStore
}

// withOwnerLocked はイベントのコピーに作成者情報を付与して返す。呼び出し側でロックを保持すること。
func (r *MemoryEventRepo) withOwnerLocked(e *model.Event) *model.Event {
	cp := *e
	cp.Owner = nil
	if u, ok := r.store.usersByID[e.CreatedBy]; ok {
		cp.Owner = &model.OwnerSummary{
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
		}
	}
	return &cp
}

func (r *MemoryEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, ok := r.store.events[id]
	if !ok {
		return nil, nil
	}
	return r.withOwnerLocked(e), nil
}

func (r *MemoryEventRepo) List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	events := []*model.Event{}
	for _, e := range r.store.events {
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if filter.CreatedBy != "" && e.CreatedBy != filter.CreatedBy {
			continue
		}
		events = append(events, r.withOwnerLocked(e))
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func (r *MemoryEventRepo) Create(ctx context.Context, event *model.Event) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *event
	cp.Owner = nil
	r.store.events[cp.ID] = &cp
	return nil
}

func (r *MemoryEventRepo) Update(ctx context.Context, event *model.Event) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.events[event.ID]
	if !ok {
		return ErrNotFound
	}
	e.Title = event.Title
	e.Description = event.Description
	e.Date = event.Date
	e.Category = event.Category
	e.UpdatedAt = event.UpdatedAt
	return nil
}

func (r *MemoryEventRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.events[id]; !ok {
		return ErrNotFound
	}
	delete(r.store.events, id)
	return nil
}

// compile-time interface check
var (
	_ UserRepository  = (*MemoryUserRepo)(nil)
	_ EventRepository = (*MemoryEventRepo)(nil)
	_ Pinger          = (*MemoryStore)(nil)
)
