package server

import (
	"sync/atomic"
)

// MatchMetrics 记录对局运行期的关键指标（用于监控与调试）
type MatchMetrics struct {
	TickCount          int64 // Tick 次数
	TotalTickNs        int64 // Tick 累计耗时（纳秒）
	SessionsOpened     int64
	SessionsClosed     int64
	LinesReceived      int64
	MalformedDropped   int64 // 解析失败被丢弃的行
	Relayed            int64 // 按原样转发的行
	ShotsAccepted      int64
	Hits               int64
	ProjectilesExpired int64 // 越界移除
	DeliveryFailures   int64 // 发送队列满或写失败
}

func (m *MatchMetrics) IncSessionOpened() { atomic.AddInt64(&m.SessionsOpened, 1) }
func (m *MatchMetrics) IncSessionClosed() { atomic.AddInt64(&m.SessionsClosed, 1) }
func (m *MatchMetrics) IncLine() { atomic.AddInt64(&m.LinesReceived, 1) }
func (m *MatchMetrics) IncMalformed() { atomic.AddInt64(&m.MalformedDropped, 1) }
func (m *MatchMetrics) IncRelayed() { atomic.AddInt64(&m.Relayed, 1) }
func (m *MatchMetrics) IncShot() { atomic.AddInt64(&m.ShotsAccepted, 1) }
func (m *MatchMetrics) IncDeliveryFailure() { atomic.AddInt64(&m.DeliveryFailures, 1) }
func (m *MatchMetrics) AddHits(n int) { atomic.AddInt64(&m.Hits, int64(n)) }
func (m *MatchMetrics) AddExpired(n int) { atomic.AddInt64(&m.ProjectilesExpired, int64(n)) }
func (m *MatchMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *MatchMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"avg_tick_ms":         avgMs,
		"sessions_opened":     atomic.LoadInt64(&m.SessionsOpened),
		"sessions_closed":     atomic.LoadInt64(&m.SessionsClosed),
		"lines_received":      atomic.LoadInt64(&m.LinesReceived),
		"malformed_dropped":   atomic.LoadInt64(&m.MalformedDropped),
		"relayed":             atomic.LoadInt64(&m.Relayed),
		"shots_accepted":      atomic.LoadInt64(&m.ShotsAccepted),
		"hits":                atomic.LoadInt64(&m.Hits),
		"projectiles_expired": atomic.LoadInt64(&m.ProjectilesExpired),
		"delivery_failures":   atomic.LoadInt64(&m.DeliveryFailures),
	}
}
