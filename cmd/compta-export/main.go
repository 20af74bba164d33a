package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eshaffer321/shopify-compta/internal/cli"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/config"
)

func main() {
	flags, err := cli.ParseExportFlags(os.Args[1:], time.Now(), os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := cli.LoadConfig(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := cli.RunExport(ctx, cfg, flags, os.Stdout); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(os.Stderr, "%v\nSet them in config.yaml, the environment, or with -store/-token/-password.\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
}
