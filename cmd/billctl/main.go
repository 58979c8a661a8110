package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"utility-tracker/internal/commands"
	"utility-tracker/internal/logging"
)

func main() {
	logging.SetupWithLevel(logging.ParseLevel(os.Getenv("LOG_LEVEL")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
