// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package api exposes the upgrade engine over a local HTTP control
// surface so desktop frontends and scripts can drive and observe a
// run without linking against the engine.
//
// Endpoints:
//
//	POST /api/v1/upgrade            start a run (409 while one is active)
//	POST /api/v1/upgrade/cancel     request a stage-boundary abort
//	GET  /api/v1/status             engine state and last report
//	GET  /api/v1/plan               the stage catalog with weights
//	GET  /api/v1/log                log snapshot, resumable via ?since=
//	GET  /api/v1/history            past runs, newest first
//	GET  /api/v1/history/:id        one past run
//	GET  /api/v1/events             websocket stream of log and progress
//	GET  /metrics                   Prometheus metrics
//
// The API binds to loopback and carries no authentication; anyone who
// can reach it locally could equally run pkexec themselves.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/engine"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/history"
)

const srvShutdownTimeout = 5 * time.Second

// PlanFunc builds the stage catalog for a requested mode.
type PlanFunc func(dryRun bool) ([]engine.Stage, error)

// Config wires a Server.
type Config struct {
	Engine *engine.Engine

	// History receives finished reports. Nil disables persistence.
	History *history.Store

	// BuildPlan produces the stages for a run request.
	BuildPlan PlanFunc

	Logger *slog.Logger
}

// Server is the HTTP control surface over one engine.
type Server struct {
	engine    *engine.Engine
	store     *history.Store
	buildPlan PlanFunc
	logger    *slog.Logger
	router    *gin.Engine
	metrics   *metrics

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewServer builds the server and its routes.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:    cfg.Engine,
		store:     cfg.History,
		buildPlan: cfg.BuildPlan,
		logger:    logger,
		metrics:   newMetrics(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	v1.POST("/upgrade", s.handleStart)
	v1.POST("/upgrade/cancel", s.handleCancel)
	v1.GET("/status", s.handleStatus)
	v1.GET("/plan", s.handlePlan)
	v1.GET("/log", s.handleLog)
	v1.GET("/history", s.handleHistory)
	v1.GET("/history/:id", s.handleHistoryGet)
	v1.GET("/events", s.handleEvents)

	s.router = r
	return s
}

// Handler returns the http handler, for serving and for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve blocks on the listener address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("control API listening", slog.String("addr", addr))
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), srvShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type startRequest struct {
	DryRun bool `json:"dry_run"`
}

func (s *Server) handleStart(c *gin.Context) {
	var req startRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	stages, err := s.buildPlan(req.DryRun)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	mode := engine.ModeReal
	if req.DryRun {
		mode = engine.ModeDryRun
	}

	runCtx, cancel := context.WithCancel(context.Background())
	progressCh, unsubscribe := s.engine.SubscribeProgress(64)

	// Start claims the engine's single-run slot before returning, so
	// two racing requests cannot both be accepted.
	done, err := s.engine.Start(runCtx, stages, mode)
	if err != nil {
		cancel()
		unsubscribe()
		if errors.Is(err, engine.ErrRunActive) {
			c.JSON(http.StatusConflict, gin.H{"error": "an upgrade run is already active"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.metrics.running.Set(1)
	s.metrics.progress.Set(0)

	go func() {
		// Ends when the run's unsubscribe below closes the channel.
		for u := range progressCh {
			s.metrics.progress.Set(float64(u.Percent))
		}
	}()

	go func() {
		defer cancel()
		defer unsubscribe()
		report := <-done
		s.metrics.running.Set(0)
		s.metrics.progress.Set(float64(report.Percent))
		s.metrics.observeReport(report)
		if s.store != nil {
			if err := s.store.Append(report); err != nil {
				s.logger.Error("could not persist run report",
					slog.String("run_id", report.RunID), slog.String("error", err.Error()))
			}
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started", "mode": mode.String()})
}

func (s *Server) handleCancel(c *gin.Context) {
	if !s.engine.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "no upgrade run is active"})
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{"running": s.engine.Running()}
	if last := s.engine.LastReport(); last != nil {
		resp["last_report"] = last
	}
	c.JSON(http.StatusOK, resp)
}

type planStage struct {
	Name           string `json:"name"`
	Weight         int    `json:"weight"`
	Classification string `json:"classification"`
	Operations     int    `json:"operations"`
}

func (s *Server) handlePlan(c *gin.Context) {
	dryRun := c.Query("dry_run") == "true"
	stages, err := s.buildPlan(dryRun)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]planStage, 0, len(stages))
	total := 0
	for _, st := range stages {
		out = append(out, planStage{
			Name:           st.Name,
			Weight:         st.Weight,
			Classification: st.Class.String(),
			Operations:     len(st.Operations),
		})
		total += st.Weight
	}
	c.JSON(http.StatusOK, gin.H{"stages": out, "total_weight": total})
}

func (s *Server) handleLog(c *gin.Context) {
	lines := s.engine.SnapshotLog()
	if since := c.Query("since"); since != "" {
		seq, err := strconv.ParseUint(since, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a sequence number"})
			return
		}
		var tail []engine.LogLine
		for _, line := range lines {
			if line.Seq > seq {
				tail = append(tail, line)
			}
		}
		lines = tail
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	reports, err := s.store.List(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": reports})
}

func (s *Server) handleHistoryGet(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}
	report, err := s.store.Get(c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
