package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"xiaozhi-go/internal/auth"
	"xiaozhi-go/internal/config"
	"xiaozhi-go/internal/factory"
	"xiaozhi-go/internal/session"
	"xiaozhi-go/services/tools"
)

var configPath string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the device websocket server",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the server configuration file")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	authn, err := buildAuthenticator(cfg)
	if err != nil {
		return fmt.Errorf("build authenticator: %w", err)
	}

	var deviceClient *config.DeviceConfigClient
	if cfg.DeviceConfigURL != "" {
		deviceClient = config.NewDeviceConfigClient(cfg.DeviceConfigURL)
	}

	redisClient := maybeConnectRedis()
	natsConn := maybeConnectNATS()
	if natsConn != nil {
		defer natsConn.Close()
	}

	f := factory.New(redisClient, natsConn, tools.NewToolRegistry())
	defaultCollab, systemPrompt, err := f.BuildDefault(cfg)
	if err != nil {
		return fmt.Errorf("build default modules: %w", err)
	}
	_ = systemPrompt // server-default prompt is seeded per session from private config instead

	registry := session.NewRegistry()
	handler := &deviceHandler{
		cfg:           cfg,
		authn:         authn,
		deviceClient:  deviceClient,
		factory:       f,
		registry:      registry,
		defaultCollab: defaultCollab,
	}

	mux := http.NewServeMux()
	mux.Handle("/xiaozhi/v1/", handler)
	mux.Handle("/metrics", promhttp.Handler())

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8000"
	}
	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down", "active_sessions", registry.Len())
		registry.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	return nil
}

func buildAuthenticator(cfg *config.Config) (auth.Authenticator, error) {
	if cfg.AuthSecret == "" {
		return nil, fmt.Errorf("auth_secret not configured")
	}
	key, err := loadRSAPublicKey(cfg.AuthSecret)
	if err != nil {
		return nil, err
	}
	return auth.NewJWTAuthenticator(key), nil
}

// maybeConnectRedis connects to Redis only when REDIS_ADDR is set, so a
// deployment with no memory module configured never needs a Redis
// instance running at all.
func maybeConnectRedis() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr})
}

// maybeConnectNATS connects to NATS only when NATS_URL is set, mirroring
// maybeConnectRedis: remote tools are an opt-in capability.
func maybeConnectNATS() *nats.Conn {
	url := os.Getenv("NATS_URL")
	if url == "" {
		return nil
	}
	conn, err := nats.Connect(url)
	if err != nil {
		slog.Warn("nats connect failed, remote tools disabled", "error", err)
		return nil
	}
	return conn
}
