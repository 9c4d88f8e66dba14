package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yoockh/yoointerview/internal/events"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

// StatusSubscriber streams raw analysis events for one session.
type StatusSubscriber interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan string, func() error, error)
}

type TaskReader interface {
	GetTask(ctx context.Context, taskID string) (*models.AnalysisTask, error)
}

// WSHandler pushes analysis task status changes to the candidate.
type WSHandler struct {
	sessions services.InterviewService
	tasks    TaskReader
	sub      StatusSubscriber
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions services.InterviewService, tasks TaskReader, sub StatusSubscriber) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		tasks:    tasks,
		sub:      sub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) write(mt int, b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteMessage(mt, b)
}

func (h *WSHandler) AnalysisStatus(c *gin.Context) {
	const op = "WSHandler.AnalysisStatus"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing session_id", nil))
		return
	}
	if h.sub == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "status stream is not configured", nil))
		return
	}

	sess, err := h.sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.CandidateID != userID {
		writeError(c, utils.E(utils.CodeNotFound, op, "session not found", nil))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// subscribe before the snapshot so no change falls in between
	msgs, closeSub, err := h.sub.Subscribe(ctx, sessionID)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "failed to subscribe", err))
		return
	}
	defer closeSub()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	wc := &wsConn{c: conn}

	if sess.AnalysisTaskID != "" && h.tasks != nil {
		if t, err := h.tasks.GetTask(ctx, sess.AnalysisTaskID); err == nil {
			if b, err := json.Marshal(events.NewTaskEvent(t, t.UpdatedAt)); err == nil {
				_ = wc.write(websocket.TextMessage, b)
			}
		}
	}

	// reader: only control frames are expected; a read error means the client left
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := wc.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case payload, ok := <-msgs:
			if !ok {
				return
			}
			if err := wc.write(websocket.TextMessage, []byte(payload)); err != nil {
				return
			}
		}
	}
}
