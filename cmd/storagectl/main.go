package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/infrakit/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewApp().Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "storagectl: %v\n", err)
		stop()
		os.Exit(1)
	}
}
