// cmd/trip-backfill/main.go
package main

import (
	"github.com/bstardust/trip-backfill/internal/logger"
	"github.com/bstardust/trip-backfill/pkg/cli"
)

func main() {
	logger.Init()
	cli.Execute()
}
