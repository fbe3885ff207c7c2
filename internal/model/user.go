// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限レベルを表す。
type Role string

const (
	// RoleUser は一般ユーザー。自身が作成したイベントのみ変更できる。
	RoleUser Role = "user"
	// RoleAdmin は管理者。すべてのイベントとユーザーを管理できる。
	RoleAdmin Role = "admin"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Gender はユーザーの性別を表す。未設定の場合は空文字列。
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// User はサービス利用ユーザー（認証主体）を表す。
// PasswordHashは外部に公開しない。
type User struct {
	ID           string
	FirstName    string
	LastName     string
	MiddleName   string
	Email        string
	PasswordHash string
	Gender       Gender
	BirthDate    *time.Time
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin はユーザーが管理者かどうかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Principal はトークン検証後にリクエストコンテキストへ束縛される最小限の認証主体。
type Principal struct {
	ID   string
	Role Role
}

// IsAdmin は認証主体が管理者かどうかを返す。
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// PrincipalOf はユーザーからPrincipalを生成する。
func PrincipalOf(u *User) *Principal {
	return &Principal{ID: u.ID, Role: u.Role}
}
