// Package ws streams run events over WebSocket and accepts resume and
// cancel requests on the same connection.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/await/internal/config"
	"github.com/xiaot623/gogo/await/internal/domain"
	"github.com/xiaot623/gogo/await/internal/runtime"
	"github.com/xiaot623/gogo/await/internal/service"
)

// Server handles WebSocket connections.
type Server struct {
	service  *service.Service
	upgrader websocket.Upgrader

	pingInterval   time.Duration
	writeTimeout   time.Duration
	readTimeout    time.Duration
	maxMessageSize int64
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, svc *service.Service) *Server {
	return &Server{
		service:        svc,
		pingInterval:   config.PositiveOr(cfg.PingInterval, config.DefaultPingInterval),
		writeTimeout:   config.PositiveOr(cfg.WriteTimeout, config.DefaultWriteTimeout),
		readTimeout:    config.PositiveOr(cfg.ReadTimeout, config.DefaultReadTimeout),
		maxMessageSize: cfg.MaxMessageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// connection is one client attached to one run.
type connection struct {
	runID  string
	ws     *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (c *connection) close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

// HandleWebSocket upgrades the request and streams the run's events.
// GET /v1/runs/:run_id/ws
func (s *Server) HandleWebSocket(c echo.Context) error {
	runID := c.Param("run_id")

	ctx, cancel := context.WithCancel(context.Background())
	events, err := s.service.Subscribe(ctx, runID)
	if err != nil {
		cancel()
		status := http.StatusInternalServerError
		if runtime.KindOf(err) == runtime.KindNotFound {
			status = http.StatusNotFound
		}
		return c.JSON(status, domain.ErrorResponse{Error: err.Error(), Kind: string(runtime.KindOf(err))})
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		cancel()
		log.Printf("WARN: failed to upgrade WebSocket: %v", err)
		return nil
	}

	conn := &connection{
		runID:  runID,
		ws:     ws,
		send:   make(chan []byte, 16),
		ctx:    ctx,
		cancel: cancel,
	}
	ws.SetReadLimit(s.maxMessageSize)

	go s.writePump(conn, events)
	go s.readPump(conn)

	return nil
}

// readPump reads client requests until the connection closes.
func (s *Server) readPump(conn *connection) {
	defer conn.close()

	conn.ws.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	for {
		_, message, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: WebSocket error on run %s: %v", conn.runID, err)
			}
			return
		}

		s.handleMessage(conn, message)
	}
}

// writePump is the only writer on the connection. It forwards run events
// and replies, pings the client, and closes after the terminal event.
func (s *Server) writePump(conn *connection, events <-chan domain.Event) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		conn.close()
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				s.drainReplies(conn)
				conn.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
				conn.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
				return
			}
			data, err := json.Marshal(EventMessage{
				BaseMessage: BaseMessage{Type: TypeEvent, Ts: time.Now().UnixMilli(), RunID: conn.runID},
				Event:       event,
			})
			if err != nil {
				log.Printf("ERROR: failed to marshal event: %v", err)
				continue
			}
			if err := s.write(conn, websocket.TextMessage, data); err != nil {
				return
			}

		case message := <-conn.send:
			if err := s.write(conn, websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := s.write(conn, websocket.PingMessage, nil); err != nil {
				return
			}

		case <-conn.ctx.Done():
			return
		}
	}
}

func (s *Server) drainReplies(conn *connection) {
	for {
		select {
		case message := <-conn.send:
			if err := s.write(conn, websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Server) write(conn *connection, messageType int, data []byte) error {
	conn.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := conn.ws.WriteMessage(messageType, data); err != nil {
		log.Printf("WARN: failed to write to WebSocket on run %s: %v", conn.runID, err)
		return err
	}
	return nil
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *connection, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch baseMsg.Type {
	case TypeResume:
		s.handleResume(conn, baseMsg.RequestID, data)
	case TypeCancel:
		s.handleCancel(conn, baseMsg.RequestID, data)
	default:
		s.sendError(conn, baseMsg.RequestID, ErrorCodeInvalidMessage, "unknown message type: "+baseMsg.Type)
	}
}

func (s *Server) handleResume(conn *connection, requestID string, data []byte) {
	var msg ResumeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, requestID, ErrorCodeInvalidMessage, "invalid resume message")
		return
	}

	run, err := s.service.Resume(conn.ctx, conn.runID, domain.ResumeRequest{
		AwaitID:     msg.AwaitID,
		Message:     msg.Message,
		SubmittedBy: msg.SubmittedBy,
	})
	if err != nil {
		s.sendError(conn, requestID, string(runtime.KindOf(err)), err.Error())
		return
	}
	s.sendAck(conn, requestID, run)
}

func (s *Server) handleCancel(conn *connection, requestID string, data []byte) {
	var msg CancelMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, requestID, ErrorCodeInvalidMessage, "invalid cancel message")
		return
	}

	run, err := s.service.CancelRun(conn.ctx, conn.runID, msg.Reason)
	if err != nil {
		s.sendError(conn, requestID, string(runtime.KindOf(err)), err.Error())
		return
	}
	s.sendAck(conn, requestID, run)
}

func (s *Server) sendAck(conn *connection, requestID string, run *domain.Run) {
	s.sendJSON(conn, AckMessage{
		BaseMessage: BaseMessage{Type: TypeAck, Ts: time.Now().UnixMilli(), RequestID: requestID, RunID: conn.runID},
		Run:         run,
	})
}

func (s *Server) sendError(conn *connection, requestID, code, message string) {
	s.sendJSON(conn, ErrorMessage{
		BaseMessage: BaseMessage{Type: TypeError, Ts: time.Now().UnixMilli(), RequestID: requestID, RunID: conn.runID},
		Code:        code,
		Message:     message,
	})
}

func (s *Server) sendJSON(conn *connection, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: failed to marshal WebSocket message: %v", err)
		return
	}
	select {
	case conn.send <- data:
	case <-conn.ctx.Done():
	}
}
