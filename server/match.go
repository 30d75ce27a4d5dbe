package server

import (
	"errors"
	"io"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Match 全局唯一的对局：会话注册表 + 世界状态。
//
// 锁顺序：注册表 mu → Session.mu → World.mu。注册表锁从不与后两者同时持有；
// Session.mu 仅在 withLive 中包住一次 World 操作。
// 任何锁内都不做网络写，写出全部经由会话自己的发送队列。
type Match struct {
	cfg     Config
	world   *World
	metrics *MatchMetrics

	mu       sync.RWMutex
	sessions map[PlayerID]*Session

	lastID   atomic.Int64
	tickRate atomic.Int64
}

// NewMatch 创建对局
func NewMatch(cfg Config) *Match {
	m := &Match{
		cfg:      cfg,
		world:    NewWorld(cfg),
		metrics:  &MatchMetrics{},
		sessions: make(map[PlayerID]*Session),
	}
	m.tickRate.Store(int64(cfg.TickRate))
	return m
}

func (m *Match) World() *World          { return m.world }
func (m *Match) Metrics() *MatchMetrics { return m.metrics }

// Serve 接管一条连接直到其关闭：
// 分配 id → 下发 Client_ID → 放置到出生点 → 注册 → 通知其他人加入；
// 读出错后执行断开清理。
func (m *Match) Serve(conn lineConn) {
	s := m.open(conn)
	go s.writePump(m)
	err := s.readLoop(m)
	m.Drop(s.ID, err)
}

func (m *Match) open(conn lineConn) *Session {
	id := PlayerID(m.lastID.Add(1))
	s := newSession(id, conn, m.cfg.SendQueue)
	// 先入队 Client_ID，保证它是该客户端收到的第一行
	_ = s.enqueue(FormatClientID(id))
	m.world.UpsertPlayer(id, m.cfg.Spawn())

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.metrics.IncSessionOpened()
	Log.Infow("player joined", "id", id, "remote", conn.RemoteAddr(), "trace", s.Trace.String())

	m.Broadcast(FormatJoined(id), id)
	return s
}

// Broadcast 向除 exclude 外的所有会话投递一行。
// 先在读锁下取快照再释放锁逐个入队；投递失败的会话立即断开，其余继续投递。
func (m *Match) Broadcast(line string, exclude PlayerID) {
	m.mu.RLock()
	targets := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		if id != exclude {
			targets = append(targets, s)
		}
	}
	m.mu.RUnlock()

	var failed []PlayerID
	for _, s := range targets {
		if err := s.enqueue(line); err != nil {
			if errors.Is(err, ErrSendQueueFull) {
				m.metrics.IncDeliveryFailure()
				Log.Warnw("send queue full, dropping session", "id", s.ID)
			}
			failed = append(failed, s.ID)
		}
	}
	for _, id := range failed {
		m.Drop(id, ErrSendQueueFull)
	}
}

// Drop 断开会话：注销、关闭连接、移除玩家、通知其他人离开。
// 对同一 id 只有第一次调用生效。
func (m *Match) Drop(id PlayerID, reason error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}

	s.close()
	m.world.RemovePlayer(id)
	m.metrics.IncSessionClosed()
	if reason == nil || errors.Is(reason, io.EOF) {
		Log.Infow("player left", "id", id, "trace", s.Trace.String())
	} else {
		Log.Infow("player dropped", "id", id, "trace", s.Trace.String(), "err", reason)
	}

	m.Broadcast(FormatLeft(id), id)
}

// Close 断开所有会话（进程退出时使用）
func (m *Match) Close() {
	m.mu.RLock()
	ids := slices.Collect(maps.Keys(m.sessions))
	m.mu.RUnlock()
	for _, id := range ids {
		m.Drop(id, nil)
	}
}

// SessionInfo 管理接口展示的会话信息
type SessionInfo struct {
	ID          PlayerID  `json:"id"`
	Trace       string    `json:"trace"`
	Remote      string    `json:"remote"`
	ConnectedAt time.Time `json:"connectedAt"`
	Pos         Vec2      `json:"pos"`
	Score       int       `json:"score"`
}

// Sessions 按 id 升序列出在线会话及其玩家状态
func (m *Match) Sessions() []SessionInfo {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()
	slices.SortFunc(list, func(a, b *Session) int { return int(a.ID - b.ID) })

	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		info := SessionInfo{
			ID:          s.ID,
			Trace:       s.Trace.String(),
			Remote:      s.conn.RemoteAddr(),
			ConnectedAt: s.ConnectedAt,
		}
		if p, ok := m.world.Player(s.ID); ok {
			info.Pos = p.Pos
			info.Score = p.Score
		}
		out = append(out, info)
	}
	return out
}

// NumSessions 当前在线会话数
func (m *Match) NumSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
