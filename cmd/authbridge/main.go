package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/instillct/authbridge/internal/authsrv"
	"github.com/instillct/authbridge/internal/config"
	"github.com/instillct/authbridge/internal/cookie"
	"github.com/instillct/authbridge/internal/idp"
	"github.com/instillct/authbridge/internal/log"
	"github.com/instillct/authbridge/internal/metrics"
	"github.com/instillct/authbridge/internal/server"
)

var BuildVersion = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-version" {
		fmt.Println(BuildVersion)
		return
	}

	// Local development reads a .env file; in deployment the environment
	// comes from the orchestrator and no file exists.
	if err := godotenv.Load(); err != nil {
		log.LogDebug("No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting authbridge", map[string]any{
		"version": BuildVersion,
		"env":     cfg.Env,
		"addr":    cfg.Addr,
	})

	bridge := server.NewBridge(
		&cfg,
		authsrv.NewClient(cfg.AuthServerAdminURL, cfg.AuthServerAPIKey),
		idp.NewClient(cfg.IdentityProviderURL),
		authsrv.NewExchanger(&cfg),
		cookie.NewManager(cfg.IsDev()),
		metrics.New(),
	)

	router := server.NewRouter(bridge)
	httpServer := server.NewHTTPServer(router, cfg.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(httpServer.Start)
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Stop(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.LogError("Server exited with error: %v", err)
		os.Exit(1)
	}
}
