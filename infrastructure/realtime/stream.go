package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/services"
	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/pkg/observability"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 * 1024
	sendBufferSize = 64
)

// Frame is what a follower receives for each new message.
type Frame struct {
	Type      string            `json:"type"`
	Timestamp int64             `json:"timestamp"`
	Data      *entities.Message `json:"data,omitempty"`
}

// StreamConfig holds WebSocket streaming configuration
type StreamConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	AllowedOrigins  []string
	IdleTimeout     time.Duration
}

// Streamer pushes a case's new messages to browser clients over WebSocket.
type Streamer struct {
	sync      *services.TranscriptSync
	upgrader  websocket.Upgrader
	idle      time.Duration
	collector *observability.Collector
	logger    *zap.Logger
}

// NewStreamer creates a streamer. collector may be nil.
func NewStreamer(sync *services.TranscriptSync, cfg StreamConfig, collector *observability.Collector, logger *zap.Logger) *Streamer {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = true
	}
	return &Streamer{
		sync: sync,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
		idle:      cfg.IdleTimeout,
		collector: collector,
		logger:    logger,
	}
}

// Serve upgrades the request and streams messages of caseID that are not in
// seed. The caller has already authorized access to the case. Serve returns
// when the client goes away or the idle timeout passes.
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, caseID string, seed []*entities.Message) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}
	defer conn.Close()

	if s.collector != nil {
		s.collector.StreamSubscribers.Inc()
		defer s.collector.StreamSubscribers.Dec()
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.idle > 0 {
		ctx, cancel = context.WithTimeout(r.Context(), s.idle)
	} else {
		ctx, cancel = context.WithCancel(r.Context())
	}
	defer cancel()

	logger := s.logger.With(zap.String("caseID", caseID))
	send := make(chan []byte, sendBufferSize)

	go s.readPump(conn, cancel, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump(ctx, conn, send, logger)
		cancel()
	}()

	err = s.sync.Follow(ctx, caseID, seed, func(msg *entities.Message) error {
		data, err := json.Marshal(Frame{Type: "message", Timestamp: time.Now().Unix(), Data: msg})
		if err != nil {
			return err
		}
		select {
		case send <- data:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil && ctx.Err() == nil {
		logger.Warn("Transcript stream ended", zap.Error(err))
	}
	close(send)
	<-done
	logger.Debug("Stream closed")
}

// readPump only watches for pongs and the peer closing.
func (s *Streamer) readPump(conn *websocket.Conn, cancel context.CancelFunc, logger *zap.Logger) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (s *Streamer) writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("Failed to write message", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			// Drain so the follower never blocks on a dead writer.
			for range send {
			}
			return
		}
	}
}
