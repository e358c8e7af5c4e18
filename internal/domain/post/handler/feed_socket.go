package handler

import (
	"context"
	"net/http"
	"time"

	"rankkings/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const socketWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// FeedSocket 以 WebSocket 推送公开动态，收到 "ping" 回复 "pong"
func (h *PostHandler) FeedSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L().Warn("feed socket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// gorilla 连接只允许一个并发写者
	writes := make(chan func() error, 1)
	go func() {
		defer cancel()
		feed := h.service.GetPublicFeed(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case write := <-writes:
				if err := write(); err != nil {
					return
				}
			case posts, ok := <-feed:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
				if err := conn.WriteJSON(gin.H{"event": "feed", "data": posts}); err != nil {
					logger.L().Debug("feed socket write failed", zap.Error(err))
					return
				}
			}
		}
	}()

	// Main read cycle
	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if string(message) != "ping" {
			continue
		}
		select {
		case writes <- func() error { return conn.WriteMessage(mt, []byte("pong")) }:
		case <-ctx.Done():
			return
		}
	}
}
