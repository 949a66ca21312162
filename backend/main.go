// backend/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"supaupload/provider"
	"supaupload/storage"
)

func main() {
	InitLogger()

	if err := LoadConfig("config.json"); err != nil {
		slog.Error("加载配置时发生严重错误，程序无法启动", "error", err)
		os.Exit(1)
	}

	// 检查配置是否已初始化，这是启动服务的先决条件。
	if !AppConfig.Initialized {
		runInitializationGuide()
		os.Exit(1)
	}

	settings, err := AppConfig.ProviderSettings()
	if err != nil {
		slog.Error("provider 配置无效", "error", err)
		os.Exit(1)
	}
	p, err := provider.New(settings)
	if err != nil {
		slog.Error("存储 provider 初始化失败", "error", err)
		os.Exit(1)
	}
	slog.Info("存储 provider 已就绪", "provider", provider.DisplayName, "bucket", p.Bucket(), "directory", p.Directory())

	db, err := ConnectDatabase(AppConfig.Database)
	if err != nil {
		slog.Error("数据库初始化失败", "error", err)
		os.Exit(1)
	}

	scanner, err := NewScanner(AppConfig.ClamdSocket)
	if err != nil {
		slog.Warn("Clamd 扫描器初始化失败，文件扫描功能将不可用。", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go RetryPendingDeletesTask(ctx, db, p, 10*time.Minute)

	handler := &MediaHandler{DB: db, Scanner: scanner, Provider: p}
	router := newRouter(AppConfig, handler)

	serverAddr := ":" + AppConfig.ServerPort
	srv := &http.Server{Addr: serverAddr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("后端服务准备启动...", "address", "http://localhost"+serverAddr, "bucket", p.Bucket(), "database", AppConfig.Database.Type)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("无法启动 HTTP 服务器", "error", err)
		os.Exit(1)
	}
}

func newRouter(cfg *Config, h *MediaHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetTrustedProxies(nil)

	var allowedOrigins []string
	if cfg.CORSAllowedOrigins != "" {
		allowedOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	}
	if len(allowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 本地存储时直接提供静态文件
	if local, ok := h.Provider.Store().(*storage.LocalStorage); ok {
		router.Static("/uploads", local.BasePath())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := router.Group("/api/v1")
	{
		if cfg.RateLimit.Enabled {
			limiter := NewIPRateLimiter(cfg.RateLimit.Requests, cfg.GetRateLimitDuration())
			apiV1.POST("/upload", limiter.RateLimitMiddleware(), h.HandleUpload)
		} else {
			apiV1.POST("/upload", h.HandleUpload)
		}
		apiV1.GET("/provider", h.HandleProviderInfo)
		apiV1.GET("/files/:id", h.HandleGetMedia)
		apiV1.DELETE("/files/:id", h.HandleDeleteMedia)
		apiV1.GET("/files/:id/signed-url", h.HandleSignedURL)
	}
	return router
}

// runInitializationGuide 在配置未初始化时显示引导信息
func runInitializationGuide() {
	fmt.Println("--- supaupload 未初始化 ---")
	fmt.Println("请通过 config.json 或环境变量进行配置：")
	fmt.Println("-----------------------------------------------------------------")
	fmt.Println("SUPAUPLOAD_INITIALIZED=true                       # 完成配置后设置为 true")
	fmt.Println("SUPAUPLOAD_SERVERPORT=8080")
	fmt.Println("SUPAUPLOAD_PROVIDER_APIURL=https://<project>.supabase.co")
	fmt.Println("SUPAUPLOAD_PROVIDER_APIKEY=<service role key>")
	fmt.Println("SUPAUPLOAD_PROVIDER_BUCKET=strapi-uploads           # 可选")
	fmt.Println("SUPAUPLOAD_PROVIDER_DIRECTORY=media                 # 可选")
	fmt.Println("\n# config.json 中的 Provider.Options 会透传给存储客户端，例如:")
	fmt.Println(`#   "Options": {"dynamic_directory": true, "backend": "s3", "access_key_id": "<id>"}`)
	fmt.Println("\n# 数据库 (默认 SQLite)")
	fmt.Println("SUPAUPLOAD_DATABASE_TYPE=sqlite")
	fmt.Println("SUPAUPLOAD_DATABASE_DSN=data/supaupload.db")
	fmt.Println("-----------------------------------------------------------------")
}
