// メンタリングプラットフォームのAPI Gatewayのエントリポイント。
// フロントエンドとマネージドバックエンドの間に立ち、セッションCookieによる認証と
// プロフィール・接続・メッセージのAPIを提供する。
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dimiximid/mentoring-plat/internal/config"
	"github.com/dimiximid/mentoring-plat/internal/gateway"
	"github.com/dimiximid/mentoring-plat/internal/logger"
)

func main() {
	if err := config.LoadDotEnv(""); err != nil {
		slog.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.SetupDefault(os.Stdout, logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := gateway.NewServer(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize gateway", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer server.Close()

	log.Info("starting gateway",
		slog.String("port", cfg.Port),
		slog.String("backend", cfg.Backend),
		slog.String("session_store", cfg.SessionStore),
	)
	if err := server.Run(ctx); err != nil {
		log.Error("gateway stopped with error", slog.String("error", err.Error()))
		server.Close()
		os.Exit(1)
	}
}
