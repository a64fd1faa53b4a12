/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package operator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/klog/v2"

	"github.com/webrecorder/btrix-operator/pkg/config"
	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
)

// Server exposes the meta-controller sync webhooks over HTTP.
type Server struct {
	crawlJobs   *CrawlJobReconciler
	profileJobs *ProfileJobReconciler
	collIndexes *CollIndexReconciler
	cronJobs    *CronJobDecorator

	httpServer *http.Server
}

func NewServer(crawlJobs *CrawlJobReconciler, profileJobs *ProfileJobReconciler, collIndexes *CollIndexReconciler, cronJobs *CronJobDecorator) *Server {
	return &Server{
		crawlJobs:   crawlJobs,
		profileJobs: profileJobs,
		collIndexes: collIndexes,
		cronJobs:    cronJobs,
	}
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	sync := router.Group("/sync")
	sync.POST("/crawljob", s.handleSync(func(ctx context.Context, req *SyncRequest) (interface{}, error) {
		return s.crawlJobs.Sync(ctx, req)
	}))
	sync.POST("/profilejob", s.handleSync(func(ctx context.Context, req *SyncRequest) (interface{}, error) {
		return s.profileJobs.Sync(ctx, req)
	}))
	sync.POST("/collindex", s.handleSync(func(ctx context.Context, req *SyncRequest) (interface{}, error) {
		return s.collIndexes.Sync(ctx, req)
	}))
	sync.POST("/cronjob", s.handleDecorate)
	return router
}

func (s *Server) handleSync(fn func(ctx context.Context, req *SyncRequest) (interface{}, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		var req SyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp, err := fn(c.Request.Context(), &req)
		if err != nil {
			s.writeError(c, err)
			return
		}
		klog.V(4).Infof("sync %s handled in %s", c.FullPath(), time.Since(start))
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleDecorate(c *gin.Context) {
	var req DecorateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := s.cronJobs.Decorate(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) writeError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	if statusErr, ok := err.(*apierrors.StatusError); ok && statusErr.ErrStatus.Code > 0 {
		code = int(statusErr.ErrStatus.Code)
	}
	klog.ErrorS(err, "sync request failed", "path", c.FullPath(), "code", btrixerrors.GetErrorCode(err))
	c.JSON(code, gin.H{"error": err.Error()})
}

// Start serves the webhook until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", config.GetServerPort()),
		Handler: s.routes(),
	}
	errCh := make(chan error, 1)
	go func() {
		klog.Infof("sync webhook listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
