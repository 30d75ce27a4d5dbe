package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn 将 WebSocket 适配为按行连接：
// 入站一帧可包含多行（以 '\n' 分隔），出站每行一帧
type wsConn struct {
	ws      *websocket.Conn
	pending []string

	writeTimeout time.Duration
	idleTimeout  time.Duration
}

func newWSConn(ws *websocket.Conn, cfg Config) *wsConn {
	ws.SetReadLimit(int64(cfg.MaxLineBytes))
	return &wsConn{
		ws:           ws,
		writeTimeout: cfg.writeTimeout(),
		idleTimeout:  cfg.idleTimeout(),
	}
}

func (c *wsConn) ReadLine() (string, error) {
	for len(c.pending) == 0 {
		if c.idleTimeout > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.idleTimeout))
		}
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", io.EOF
			}
			return "", err
		}
		for _, line := range strings.Split(strings.TrimSuffix(string(payload), "\n"), "\n") {
			c.pending = append(c.pending, strings.TrimSuffix(line, "\r"))
		}
	}
	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

func (c *wsConn) WriteLine(line string) error {
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsConn) Flush() error { return nil }

func (c *wsConn) Close() error { return c.ws.Close() }

func (c *wsConn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 没有鉴权，协议本身也不区分来源
		return true
	},
}

// HandleWS WebSocket 接入；本协程即该会话的读循环
func (m *Match) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}
	m.Serve(newWSConn(ws, m.cfg))
}
