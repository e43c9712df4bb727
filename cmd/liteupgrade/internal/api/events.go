// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/engine"
)

var upgrader = websocket.Upgrader{
	// Loopback-only service; frontends connect from file:// or
	// localhost origins.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
}

const (
	wsWriteTimeout = 10 * time.Second

	// progressInterval throttles progress frames. apt output can move
	// the percentage many times per second; frontends only need a
	// handful of updates, and the terminal 100% always goes through.
	progressInterval = 200 * time.Millisecond
)

// Event is one websocket frame.
type Event struct {
	Type     string                 `json:"type"` // "log" or "progress"
	Log      *engine.LogLine        `json:"log,omitempty"`
	Progress *engine.ProgressUpdate `json:"progress,omitempty"`
}

// handleEvents streams the run log and progress over a websocket.
// The current log is replayed first so a late subscriber sees the
// whole run.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	logCh, unsubLogs := s.engine.SubscribeLogs(256)
	defer unsubLogs()
	progressCh, unsubProgress := s.engine.SubscribeProgress(64)
	defer unsubProgress()

	// Reader goroutine: we never expect client frames, but reading is
	// what surfaces the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logWebsocketError(s.logger, err)
				return
			}
		}
	}()

	write := func(ev Event) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			return false
		}
		return true
	}

	// Replay, then live. Replayed lines can race new ones; the Seq
	// field lets clients deduplicate.
	for _, line := range s.engine.SnapshotLog() {
		l := line
		if !write(Event{Type: "log", Log: &l}) {
			return
		}
	}

	limiter := rate.NewLimiter(rate.Every(progressInterval), 1)
	for {
		select {
		case <-done:
			return
		case line, ok := <-logCh:
			if !ok {
				return
			}
			if !write(Event{Type: "log", Log: &line}) {
				return
			}
		case u, ok := <-progressCh:
			if !ok {
				return
			}
			if u.Percent < 100 && !limiter.Allow() {
				continue
			}
			if !write(Event{Type: "progress", Progress: &u}) {
				return
			}
		}
	}
}

// logWebsocketError keeps noisy disconnects at debug level.
func logWebsocketError(logger *slog.Logger, err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		logger.Warn("websocket closed unexpectedly", slog.String("error", err.Error()))
		return
	}
	logger.Debug("websocket closed", slog.String("error", err.Error()))
}
