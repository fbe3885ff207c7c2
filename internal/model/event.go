package model

import "time"

// Category はイベントのカテゴリを表す。未設定の場合は空文字列。
type Category string

const (
	CategoryConcert    Category = "concert"
	CategoryLecture    Category = "lecture"
	CategoryExhibition Category = "exhibition"
)

// Categories は許可されたカテゴリの一覧。一覧取得のフィルタもこの値に限定する。
var Categories = []Category{CategoryConcert, CategoryLecture, CategoryExhibition}

// Valid はカテゴリが許可リストに含まれるかどうかを返す。
func (c Category) Valid() bool {
	for _, allowed := range Categories {
		if c == allowed {
			return true
		}
	}
	return false
}

// Event はユーザーが作成するイベントを表す。
// CreatedByは作成時に認証済みユーザーから設定され、以後変更されない。
type Event struct {
	ID          string
	Title       string
	Description string
	Date        time.Time
	Category    Category
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Owner は一覧・詳細取得時にusersテーブルとJOINして設定される作成者情報。
	Owner *OwnerSummary
}

// OwnerID はイベントの所有者IDを返す。所有権チェックで使用する。
func (e *Event) OwnerID() string {
	if e == nil {
		return ""
	}
	return e.CreatedBy
}

// OwnerSummary はイベント作成者の公開可能な情報。
type OwnerSummary struct {
	FirstName string
	LastName  string
	Email     string
}

// EventFilter はイベント一覧のフィルタ条件。
// 空文字列のフィールドは条件に含めない。
type EventFilter struct {
	Category  Category
	CreatedBy string
}
