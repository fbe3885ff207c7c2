// Package policy は認証主体とリソースの組から操作の可否を判定する。
//
// 判定規則は次の2つのみ。
//   - 管理者はすべてのリソースを操作できる。
//   - それ以外はリソースの作成者のみが操作できる。
package policy

import (
	"context"
	"log/slog"

	"github.com/hitoshi/eventhub/internal/model"
)

// Action はリソースに対する操作の種別。ログとエラー報告に使用する。
type Action string

const (
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Decision は判定結果。
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Owned は所有者を持つリソース。
type Owned interface {
	OwnerID() string
}

// Decide は副作用のない判定関数。principalがnilの場合はDeny。
func Decide(principal *model.Principal, resource Owned) Decision {
	if principal == nil || resource == nil {
		return Deny
	}
	if principal.Role == model.RoleAdmin {
		return Allow
	}
	if principal.ID != "" && resource.OwnerID() == principal.ID {
		return Allow
	}
	return Deny
}

// Loader はIDからリソースを取得する。存在しない場合はNotFoundのAPIErrorを返すこと。
type Loader[T Owned] func(ctx context.Context, id string) (T, error)

// Authorize は認証確認、リソース取得、判定の順に評価する。
// 未認証は401、リソースが存在しない場合はloaderのエラー（404）、Denyは403を返す。
// 許可された場合は取得したリソースを返す。
func Authorize[T Owned](ctx context.Context, principal *model.Principal, action Action, id string, load Loader[T]) (T, error) {
	var zero T
	if principal == nil {
		return zero, model.NewAuthenticationRequiredError()
	}

	resource, err := load(ctx, id)
	if err != nil {
		return zero, err
	}

	if Decide(principal, resource) == Deny {
		slog.DebugContext(ctx, "authorization denied",
			slog.String("user_id", principal.ID),
			slog.String("action", string(action)),
			slog.String("resource_id", id),
		)
		return zero, model.NewForbiddenError()
	}
	return resource, nil
}

// CheckRole は認証主体が指定ロールを持つかを確認する。
// 未認証は401、ロール不一致は403を返す。
func CheckRole(principal *model.Principal, role model.Role) error {
	if principal == nil {
		return model.NewAuthenticationRequiredError()
	}
	if principal.Role != role {
		return model.NewForbiddenError()
	}
	return nil
}
