package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"studio/internal/api"
	"studio/internal/auth"
	"studio/internal/config"
	"studio/internal/llm"
	"studio/internal/model"
	"studio/internal/service"
	"studio/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "studio-server",
		Short:         "Shot generation backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file loaded before the environment")
	root.AddCommand(newTokenCommand(&envFile))
	return root
}

// newTokenCommand 为工作台签发身份令牌
func newTokenCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "token <name>",
		Short: "Issue a requester token signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			manager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, time.Duration(cfg.JWTExpirationMinutes)*time.Minute)
			if err != nil {
				return err
			}
			token, expiresAt, err := manager.GenerateToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			logrus.WithField("expires_at", expiresAt.Format(time.RFC3339)).Info("token issued")
			return nil
		},
	}
}

func loadConfig(envFile string) (config.Config, error) {
	// 初始化logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	cfg, err := config.ParseConfig(envFile)
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return config.Config{}, err
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	return cfg, nil
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise repository")
		return err
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise storage")
		return err
	}

	generator, err := llm.NewGenerator(cfg)
	if err != nil {
		// 未配置生成服务时仍可浏览记录，提交会返回 503
		logrus.WithError(err).WithField("driver", cfg.GeneratorDriver).Warn("image generator unavailable")
		generator = nil
	}

	generationSvc := service.NewGenerationService(repo, store, generator, service.Options{
		DefaultModel:       cfg.DefaultModel,
		DefaultResolution:  cfg.DefaultResolution,
		DefaultAspectRatio: cfg.DefaultAspectRatio,
		GridCount:          cfg.BackgroundGridCount,
		Timeout:            time.Duration(cfg.GenerationTimeoutMinutes) * time.Minute,
		PublicBase:         cfg.StoragePublicBaseURL,
	})
	if _, err := generationSvc.RecoverInterrupted(ctx); err != nil {
		logrus.WithError(err).Warn("failed to recover interrupted generations")
	}

	httpHandler, err := api.NewHTTPHandler(cfg, generationSvc)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise http handler")
		return err
	}

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// 添加中间件
	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	httpHandler.RegisterRoutes(r)

	if localProvider, ok := store.(storage.LocalBaseDirProvider); ok {
		publicPrefix := service.NormalisePublicBase(cfg.StoragePublicBaseURL)
		if !strings.HasPrefix(publicPrefix, "http://") && !strings.HasPrefix(publicPrefix, "https://") {
			r.Static(publicPrefix, localProvider.LocalBaseDir())
		}
	}

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logrus.WithField("host", serverHost).Info("服务器启动")
	// 创建HTTP服务器
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  900 * time.Second,
		WriteTimeout: 900 * time.Second,
		IdleTimeout:  1200 * time.Second,
	}
	// Shutdown 不会取消 SSE 请求的 context，需要主动断开
	httpServer.RegisterOnShutdown(httpHandler.Close)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("服务器启动失败")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logrus.Info("服务器关闭中")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("http shutdown incomplete")
	}
	// 等待后台生成任务写完终态，未完成的会在下次启动时标记失败
	done := make(chan struct{})
	go func() {
		generationSvc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logrus.Warn("background generations still running at shutdown")
	}
	return nil
}

// CORSMiddleware CORS跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 处理请求
		c.Next()
		// 记录请求结束
		duration := time.Since(start)
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
