package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/journeygrid/journeygrid/internal/buildinfo"
	"github.com/journeygrid/journeygrid/internal/infrastructure/di"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(di.Config{
		Version:   buildinfo.GetVersion(),
		BuildInfo: buildinfo.Describe(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer container.Close()

	if err := container.GetRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		container.Close()
		os.Exit(1)
	}
}
