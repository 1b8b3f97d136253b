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

	w, err := app.NewWorker(ctx)
	if err != nil {
		return err
	}
	defer w.Shutdown()

	return w.Run(ctx)
}
