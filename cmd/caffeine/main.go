package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := execute(ctx)
	code := exitCodeOf(err)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if code != ExitSuccess {
		os.Exit(code)
	}
}
