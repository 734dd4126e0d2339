package main

import (
	"context"
	"fmt"
	"os"

	authhttp "github.com/AlibekovAA/panel-auth/internal/auth/http"
	"github.com/AlibekovAA/panel-auth/internal/common/bootstrap"
	"github.com/AlibekovAA/panel-auth/internal/common/config"
	srv "github.com/AlibekovAA/panel-auth/internal/common/server"
)

func main() {
	log, err := bootstrap.InitializeLogger("auth")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	cfg, err := config.LoadAuthConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	ctx := context.Background()

	app, err := bootstrap.NewAuthApp(ctx, cfg, log)
	if err != nil {
		log.Fatalf("failed to initialize auth app: %v", err)
	}

	handler := authhttp.NewHandler(app.Service, authhttp.Config{
		RequestTimeout:  cfg.RequestTimeout,
		RateLimitWindow: cfg.RateLimitWindow,
		RateLimitMax:    cfg.RateLimitMax,
		TrustedProxies:  cfg.TrustedProxies,
		ReadinessChecks: app.ReadinessChecks(),
	}, log)

	app.Cleanup.Start(ctx)

	serverConfig := srv.DefaultServerConfig(cfg.HTTPPort)
	server := srv.NewServer(serverConfig, handler)

	err = srv.Run(ctx, server, serverConfig, log, "auth",
		func(context.Context) error {
			log.Info("auth service: stopping background workers")
			handler.Close()
			app.Close()
			return nil
		},
	)
	if err != nil {
		app.Close()
		log.Fatalf("%v", err)
	}
}
