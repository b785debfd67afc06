package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/await/internal/domain"
)

// Frame is a message received on a run's WebSocket.
type Frame struct {
	Type      string        `json:"type"`
	Ts        int64         `json:"ts"`
	RequestID string        `json:"request_id,omitempty"`
	RunID     string        `json:"run_id,omitempty"`
	Event     *domain.Event `json:"event,omitempty"`
	Run       *domain.Run   `json:"run,omitempty"`
	Code      string        `json:"code,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// Watch is a WebSocket subscription to one run.
type Watch struct {
	conn *websocket.Conn
}

// Watch connects to GET /v1/runs/:run_id/ws.
func (c *Client) Watch(runID string) (*Watch, error) {
	wsURL := c.baseURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/v1/runs/"+runID+"/ws", nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Watch{conn: conn}, nil
}

// Next blocks for the next frame. It returns ok=false once the server has
// closed the stream normally.
func (w *Watch) Next() (Frame, bool, error) {
	var frame Frame
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return frame, false, nil
		}
		return frame, false, err
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return frame, false, fmt.Errorf("unmarshal frame: %w", err)
	}
	return frame, true, nil
}

// Resume answers the run's await over the socket.
func (w *Watch) Resume(awaitID, text string) error {
	return w.conn.WriteJSON(map[string]interface{}{
		"type":       "resume",
		"ts":         time.Now().UnixMilli(),
		"request_id": fmt.Sprintf("req_%d", time.Now().UnixNano()),
		"await_id":   awaitID,
		"message":    domain.NewTextMessage(domain.RoleUser, text),
	})
}

// Cancel cancels the run over the socket.
func (w *Watch) Cancel(reason string) error {
	return w.conn.WriteJSON(map[string]interface{}{
		"type":   "cancel",
		"ts":     time.Now().UnixMilli(),
		"reason": reason,
	})
}

// Close closes the connection.
func (w *Watch) Close() error {
	return w.conn.Close()
}
