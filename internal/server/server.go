package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"imageeditor/internal/config"
	"imageeditor/internal/handler"
	"imageeditor/internal/imatrix"
	"imageeditor/internal/metrics"
	"imageeditor/internal/repository"
	"imageeditor/internal/service"
)

type Server struct {
	httpServer *http.Server
	history    repository.HistoryRepository
	cfg        *config.Config
	log        *zap.Logger
}

// New builds the storage layers the config asks for and the HTTP server on
// top of them.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	imatrix.SetWorkers(cfg.App.Workers)

	var s3Repo repository.S3Repository
	if cfg.S3.Enabled {
		repo, err := repository.NewS3Repository(ctx, &cfg.S3, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 repository: %w", err)
		}
		s3Repo = repo
	} else {
		log.Info("S3 storage disabled")
	}

	history, err := openHistory(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	imageService := service.NewImageService(s3Repo, history, cfg, log)
	h := handler.NewHandler(imageService, cfg, log)

	server := &Server{
		httpServer: &http.Server{
			Addr:           cfg.Addr(),
			Handler:        NewRouter(cfg, log, h),
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		history: history,
		cfg:     cfg,
		log:     log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.Int("workers", imatrix.Workers()))

	return server, nil
}

func openHistory(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.HistoryRepository, error) {
	switch {
	case cfg.App.HistoryDSN != "":
		return repository.NewPostgresHistory(ctx, cfg.App.HistoryDSN, log)
	case cfg.App.HistoryDBPath != "":
		return repository.NewSQLiteHistory(ctx, cfg.App.HistoryDBPath, log)
	}
	log.Info("Edit history disabled")
	return nil, nil
}

// NewRouter returns the full HTTP handler: the gin routes wrapped in CORS.
func NewRouter(cfg *config.Config, log *zap.Logger, h *handler.Handler) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log), metrics.Middleware())

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api/v1")
	if cfg.Server.RateLimit > 0 {
		api.Use(newIPLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst).middleware())
	}
	{
		api.POST("/image/redactor", h.RedactImage)
		api.GET("/params/defaults", h.DefaultParams)
		api.GET("/params/steps", h.Steps)
		api.POST("/images", h.UploadImage)
		api.GET("/images", h.ListImages)
		api.POST("/images/:id/redact", h.RedactStored)
		api.GET("/images/:id/parts/:part", h.GetPart)
		api.GET("/history", h.History)
	}

	router.NoRoute(spaHandler(cfg.App.UIDir))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(router)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("Request served", fields...)
			return
		}
		log.Debug("Request served", fields...)
	}
}

// spaHandler serves files from the built frontend and falls back to
// index.html so client-side routes survive a reload.
func spaHandler(dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if dir == "" || strings.HasPrefix(p, "/api/") || c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		file := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+p)))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.File(file)
			return
		}

		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.File(index)
	}
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("host", s.cfg.Server.Host),
		zap.String("port", s.cfg.Server.Port),
		zap.String("address", s.httpServer.Addr))

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	err := s.httpServer.Shutdown(ctx)
	if s.history != nil {
		err = errors.Join(err, s.history.Close())
	}
	return err
}
