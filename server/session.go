package server

import (
	"errors"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSendQueueFull = errors.New("send queue full")
)

// lineConn 一条双向按行传输的连接（TCP 或 WebSocket）
type lineConn interface {
	// ReadLine 阻塞读取一行（不含换行符）；连接关闭返回 io.EOF
	ReadLine() (string, error)
	// WriteLine 写出一行，可能只写入缓冲区
	WriteLine(line string) error
	// Flush 将缓冲区写到网络
	Flush() error
	Close() error
	RemoteAddr() string
}

// Session 一个已连接客户端在服务端的代表：读循环 + 写协程
type Session struct {
	ID          PlayerID
	Trace       ksuid.KSUID // 日志关联用
	ConnectedAt time.Time

	conn lineConn

	mu     sync.Mutex
	send   chan string
	closed bool
}

func newSession(id PlayerID, conn lineConn, queue int) *Session {
	return &Session{
		ID:          id,
		Trace:       ksuid.New(),
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan string, queue),
	}
}

// enqueue 将一行压入发送队列，不阻塞；队列满或已关闭返回错误
func (s *Session) enqueue(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.send <- line:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// close 关闭发送队列与底层连接，可重复调用
func (s *Session) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	s.mu.Unlock()
	_ = s.conn.Close()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// withLive 会话未关闭时执行 fn。与 close 互斥，
// 保证断开清理之后不会再有该会话的世界修改落地。
func (s *Session) withLive(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	fn()
	return true
}

// writePump 独立协程，负责从 send 队列写出；队列排空时 flush
func (s *Session) writePump(m *Match) {
	for line := range s.send {
		err := s.conn.WriteLine(line)
		if err == nil && len(s.send) == 0 {
			err = s.conn.Flush()
		}
		if err != nil {
			// 已被关闭时的写错误是清理的结果，不计入投递失败
			if !s.isClosed() {
				m.metrics.IncDeliveryFailure()
			}
			m.Drop(s.ID, err)
			return
		}
	}
}

// readLoop 逐行读取并分发，直到读出错（包括 EOF）
func (s *Session) readLoop(m *Match) error {
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			return err
		}
		m.handleLine(s, line)
	}
}

// handleLine 解码一行并作用到世界状态；格式错误的消息丢弃，会话继续
func (m *Match) handleLine(s *Session, line string) {
	m.metrics.IncLine()
	msg, err := ParseLine(line)
	if errors.Is(err, ErrEmptyLine) {
		return
	}
	if err != nil {
		m.metrics.IncMalformed()
		Log.Debugw("drop malformed line", "id", s.ID, "line", line, "err", err)
		return
	}

	switch msg.Kind {
	case MsgPosition:
		if !s.withLive(func() { m.world.UpsertPlayer(s.ID, msg.Pos) }) {
			return
		}
		m.Broadcast(FormatRelay(s.ID, msg.Raw), s.ID)
	case MsgShot:
		// 不立即广播，子弹状态只通过 Tick 快照下发
		if s.withLive(func() { m.world.AddProjectile(s.ID, msg.Pos, msg.Dir, msg.Speed) }) {
			m.metrics.IncShot()
		}
	default:
		m.metrics.IncRelayed()
		m.Broadcast(FormatRelay(s.ID, msg.Raw), s.ID)
	}
}
