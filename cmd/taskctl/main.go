package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sandeepkv93/taskgate/internal/tools/taskctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := taskctl.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "taskctl:", err)
		stop()
		os.Exit(1)
	}
}
