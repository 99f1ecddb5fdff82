package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/LouYuanbo1/catalogsync/internal/service/crawler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Trigger is the part of crawler.Service the HTTP surface needs.
type Trigger interface {
	Start() crawler.StartResult
	Status() crawler.RunSnapshot
}

type Server struct {
	httpServer *http.Server
	log        logger.Interface
}

func New(addr string, trigger Trigger, gatherer prometheus.Gatherer, log logger.Interface) *Server {
	log = log.WithComponent("http")
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(trigger, gatherer, log),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

func NewRouter(trigger Trigger, gatherer prometheus.Gatherer, log logger.Interface) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	v1.POST("/crawl", func(c *gin.Context) {
		res := trigger.Start()
		if !res.Accepted {
			c.JSON(http.StatusConflict, gin.H{"accepted": false, "error": "a crawl is already running"})
			return
		}
		c.JSON(http.StatusAccepted, res)
	})
	v1.GET("/crawl/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, trigger.Status())
	})
	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

func requestLogger(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			log.Error("http request with errors", append(kv, "errors", c.Errors.String())...)
			return
		}
		log.Debug("http request", kv...)
	}
}
