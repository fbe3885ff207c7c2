package app

import (
	"errors"
	"fmt"
	"strconv"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// MigrateAction はmigrateサブコマンドの動作。
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"
	MigrateDown    MigrateAction = "down"
	MigrateVersion MigrateAction = "version"
)

// MigrateRequest はmigrateサブコマンドの解析結果。
type MigrateRequest struct {
	Action MigrateAction
	// Steps はdownで巻き戻す件数。
	Steps int
}

// ParseMigrateArgs は "migrate" に続く引数を解析する。
//
//	migrate              未適用のマイグレーションをすべて適用
//	migrate up           同上
//	migrate down [N]     直近N件を巻き戻す（省略時は1件）
//	migrate version      適用済みバージョンを表示
func ParseMigrateArgs(args []string) (MigrateRequest, error) {
	if len(args) == 0 {
		return MigrateRequest{Action: MigrateUp}, nil
	}

	switch MigrateAction(args[0]) {
	case MigrateUp:
		if len(args) > 1 {
			return MigrateRequest{}, errors.New("migrate up takes no arguments")
		}
		return MigrateRequest{Action: MigrateUp}, nil
	case MigrateVersion:
		if len(args) > 1 {
			return MigrateRequest{}, errors.New("migrate version takes no arguments")
		}
		return MigrateRequest{Action: MigrateVersion}, nil
	case MigrateDown:
		steps := 1
		if len(args) > 2 {
			return MigrateRequest{}, errors.New("migrate down takes at most one argument")
		}
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return MigrateRequest{}, fmt.Errorf("invalid migrate down steps %q: must be a positive integer", args[1])
			}
			steps = n
		}
		return MigrateRequest{Action: MigrateDown, Steps: steps}, nil
	default:
		return MigrateRequest{}, fmt.Errorf("unknown migrate action %q (want up, down or version)", args[0])
	}
}
