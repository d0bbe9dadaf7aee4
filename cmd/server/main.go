package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zeusync/football/internal/config"
	"github.com/zeusync/football/internal/injector"
	"github.com/zeusync/football/internal/core/observability/log"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	app, cleanup, err := injector.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err = app.Server.Start(ctx); err != nil {
		app.Logger.Error("Error starting server", log.Error(err))
		return
	}

	<-ctx.Done()

	stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err = app.Server.Stop(stopCtx); err != nil {
		app.Logger.Error("Error stopping server", log.Error(err))
	}
	_ = app.Server.Close()
}
