package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/sandeepkv93/taskgate/internal/di"
)

func main() {
	a, err := di.InitializeApp()
	if err != nil {
		// Covers a missing DATABASE_URL: the gateway never starts without its store.
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		a.Logger.Error("server stopped", "error", err)
		stop()
		log.Fatal(err)
	}
}
