// Command retouch edits images in place with a durable undo history.
package main

import (
	"context"
	"os"

	"github.com/roach88/retouch/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
