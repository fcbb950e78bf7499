package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/WullT/P8-Tools/cmd"
	"github.com/WullT/P8-Tools/internal/buildinfo"
	"github.com/WullT/P8-Tools/internal/runtime"
)

// Set with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   string
	buildDate string
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := runtime.New(buildinfo.NewContext(version, buildDate))
	if err := cmd.RootCommand(rt).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		_ = rt.Close()
		return 1
	}
	return 0
}
