// file: cmd/dgssviewer/serve.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/adapter/datasource/sqlite"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/config"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/observe"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/assistant"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/catalog"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/picker"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/taxonomy"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/transport/http/middleware"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/transport/http/router"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	observe.InitLogger(cfg.Server.LogLevel)
	observe.Register()
	slog.Info("DGSS Data Viewer starting up", "version", version)

	// 组装核心组件
	categories := taxonomy.MustLoad()
	mapper := taxonomy.NewMapper(categories)
	cat := catalog.New()
	defer cat.Close()

	resolver := sqlite.NewTableResolver(categories)
	executor := sqlite.NewExecutor(resolver, cat)
	aiClient := assistant.New(cfg.Ollama.BaseURL)
	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.Limit.RatePerSecond), cfg.Limit.Burst)

	httpRouter := router.New(router.Dependencies{
		Catalog:      cat,
		Mapper:       mapper,
		Executor:     executor,
		Assistant:    aiClient,
		Picker:       picker.New(),
		Limiter:      limiter,
		DefaultModel: cfg.Ollama.DefaultModel,
	})

	addr := cfg.Addr()
	server := &http.Server{
		Addr:    addr,
		Handler: httpRouter,
	}

	go func() {
		slog.Info("服务启动成功，开始监听HTTP请求...", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP服务启动失败", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("收到停机信号，准备优雅关闭...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("HTTP服务优雅关闭失败", "error", err)
		return err
	}

	slog.Info("HTTP服务已成功关闭。")
	return nil
}
