// Command eventhub はイベント管理APIサーバーを起動する。
//
// Usage:
//
//	eventhub [serve|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/eventhub/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "eventhub: %v\n", err)
		os.Exit(1)
	}
}
