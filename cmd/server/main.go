package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sundayezeilo/shortlinks/internal/app"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	// Blocks until a signal arrives or a background component fails.
	return application.Start(ctx)
}
