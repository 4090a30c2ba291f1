package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/robert-malhotra/go-ogc-client/internal/appconfig"
	"github.com/robert-malhotra/go-ogc-client/pkg/fetch"
	"github.com/robert-malhotra/go-ogc-client/pkg/ows"
	"github.com/robert-malhotra/go-ogc-client/pkg/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := appconfig.Load(os.Getenv("OGC_CONFIG_FILE"))
	if err != nil {
		return err
	}
	// The terminal belongs to tview; logs only go to a file when asked for.
	logOut, err := openLogFile(os.Getenv("OGC_TUI_LOG"))
	if err != nil {
		return err
	}
	defer logOut.Close()
	logger, err := cfg.Log.NewLogger(logOut)
	if err != nil {
		return err
	}

	deps := dependencies{logger: logger}
	if deps.fetcher, err = cfg.NewFetcher(ctx, logger); err != nil {
		return err
	}
	if deps.xmlFetcher, err = cfg.NewFetcher(ctx, logger, fetch.WithAccept(ows.AcceptXML)); err != nil {
		return err
	}
	if deps.cache, err = cfg.NewCache(ctx, logger); err != nil {
		return err
	}
	defer deps.cache.Close()

	reg := worker.NewRegistry()
	ows.RegisterTasks(reg)
	deps.runner = cfg.NewRunner(reg, logger)
	defer deps.runner.Close()

	tui := NewTUI(ctx, deps, cfg.URL)
	go func() {
		<-ctx.Done()
		tui.Stop()
	}()
	return tui.Run()
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
