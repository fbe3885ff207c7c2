// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/eventhub/internal/model"
)

// ErrNotFound は更新・削除の対象が存在しない場合に返す。
// 検索系メソッドはエラーではなくnilを返す。
var ErrNotFound = errors.New("record not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	// UUID形式でないIDも未検出として扱う。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字を区別する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List は全ユーザーを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// CreateBootstrapped はユーザー数の確認と作成を不可分に行う。
	// ユーザーが1人も存在しない場合はRoleAdmin、それ以外はRoleUserを設定して作成する。
	// 設定したロールはuser.Roleに反映される。
	CreateBootstrapped(ctx context.Context, user *model.User) error

	// Create はuser.Roleをそのまま使ってユーザーを作成する。管理者によるユーザー作成で使用する。
	Create(ctx context.Context, user *model.User) error

	// UpdateRole はユーザーのロールを更新する。対象が存在しない場合はErrNotFoundを返す。
	UpdateRole(ctx context.Context, id string, role model.Role) error

	// UpdateProfile は氏名・性別・生年月日を更新する。メールアドレスとロールは変更しない。
	// 対象が存在しない場合はErrNotFoundを返す。
	UpdateProfile(ctx context.Context, user *model.User) error
}

// EventRepository はイベントデータの永続化インターフェース。
type EventRepository interface {
	// FindByID は指定IDのイベントを作成者情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Event, error)

	// List はフィルタ条件に一致するイベントを開催日時の昇順で返す。
	List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)

	// Create はイベントを作成する。
	Create(ctx context.Context, event *model.Event) error

	// Update はタイトル・説明・開催日時・カテゴリを更新する。CreatedByは変更しない。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, event *model.Event) error

	// Delete は指定IDのイベントを削除する。対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// Pinger はストレージの疎通確認インターフェース。ヘルスチェックで使用する。
type Pinger interface {
	PingContext(ctx context.Context) error
}
