package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ambisinistra/obsidian-rag/internal/cli"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Cancellation stops indexing between documents and shuts the MCP server down
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, version+" ("+buildTime+")", os.Args[1:])
	stop()
	os.Exit(code)
}
