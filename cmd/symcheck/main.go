// Command symcheck triages symptom text offline with the server's rule table.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/linnemanlabs/symcheck/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
