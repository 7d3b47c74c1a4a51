package main

import (
	"context"
	"os"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
