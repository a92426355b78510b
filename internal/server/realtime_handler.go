package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"kinema/internal/detect"
	"kinema/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	// fpsWindow is the number of recent frames the throughput estimate
	// averages over.
	fpsWindow = 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 20,
	WriteBufferSize: 1 << 20,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsMessage struct {
	Type string `json:"type"`
	// base64编码的帧图片
	Image        string `json:"image,omitempty"`
	IncludeBody  *bool  `json:"include_body,omitempty"`
	IncludeHands *bool  `json:"include_hands,omitempty"`
	Draw         *bool  `json:"draw,omitempty"`
}

type wsStats struct {
	FramesProcessed int     `json:"frames_processed"`
	AvgProcessTime  float64 `json:"avg_process_time"`
	FPS             float64 `json:"fps"`
}

// wsConn is one realtime detection session. Frames come in as base64 images
// and results go back on the same socket; per-connection settings persist
// across frames.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	opts    detect.Options
	logger  *logrus.Entry

	frames      int
	recentTimes []time.Duration
}

// handleRealtime 实时姿态检测
// @Summary 实时姿态检测
// @Description WebSocket接口，客户端按帧发送图片并接收检测结果
// @Tags 检测
// @Router /api/v1/realtime [get]
func (s *Server) handleRealtime(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Error("websocket upgrade failed")
		return
	}

	session := &wsConn{
		conn:   conn,
		opts:   detect.Options{Body: true, Hands: false, Draw: true},
		logger: s.logger.WithField("remote", conn.RemoteAddr().String()),
	}
	session.logger.Info("realtime session opened")
	defer func() {
		conn.Close()
		session.logger.Info("realtime session closed")
	}()

	s.runRealtimeSession(c.Request.Context(), session)
}

func (s *Server) runRealtimeSession(ctx context.Context, session *wsConn) {
	for {
		session.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg wsMessage
		if err := session.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				session.logger.WithError(err).Warn("websocket read failed")
			}
			return
		}

		switch msg.Type {
		case "frame":
			s.handleRealtimeFrame(ctx, session, &msg)
		case "ping":
			session.send(gin.H{"type": "pong", "timestamp": time.Now().UnixMilli()})
		case "settings":
			session.applySettings(&msg)
			session.send(gin.H{"type": "settings_updated"})
		case "stats_request":
			session.send(gin.H{"type": "stats", "data": session.stats()})
		default:
			session.send(gin.H{"type": "error", "error": "unknown message type " + msg.Type})
		}
	}
}

func (s *Server) handleRealtimeFrame(ctx context.Context, session *wsConn, msg *wsMessage) {
	img, err := utils.Base64ToMat(msg.Image)
	if err != nil {
		session.send(gin.H{"type": "error", "error": err.Error()})
		return
	}
	defer img.Close()

	start := time.Now()
	result := s.detector.Detect(ctx, img, session.opts)
	session.observe(time.Since(start))

	session.send(gin.H{"type": "result", "data": result})
}

func (c *wsConn) applySettings(msg *wsMessage) {
	if msg.IncludeBody != nil {
		c.opts.Body = *msg.IncludeBody
	}
	if msg.IncludeHands != nil {
		c.opts.Hands = *msg.IncludeHands
	}
	if msg.Draw != nil {
		c.opts.Draw = *msg.Draw
	}
}

func (c *wsConn) observe(d time.Duration) {
	c.frames++
	c.recentTimes = append(c.recentTimes, d)
	if len(c.recentTimes) > fpsWindow {
		c.recentTimes = c.recentTimes[len(c.recentTimes)-fpsWindow:]
	}
}

func (c *wsConn) stats() wsStats {
	stats := wsStats{FramesProcessed: c.frames}
	if len(c.recentTimes) == 0 {
		return stats
	}
	var total time.Duration
	for _, d := range c.recentTimes {
		total += d
	}
	avg := total / time.Duration(len(c.recentTimes))
	stats.AvgProcessTime = avg.Seconds()
	if avg > 0 {
		stats.FPS = 1 / avg.Seconds()
	}
	return stats
}

func (c *wsConn) send(payload any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteJSON(payload); err != nil {
		c.logger.WithError(err).Warn("websocket write failed")
	}
}
