package server

import (
	"context"
	"errors"
	"time"
)

// TickRate 当前 Tick 频率（每秒次数）
func (m *Match) TickRate() int { return int(m.tickRate.Load()) }

// SetTickRate 运行时调整 Tick 频率，下一次循环生效
func (m *Match) SetTickRate(hz int) error {
	if hz <= 0 {
		return errors.New("tick rate must be positive")
	}
	m.tickRate.Store(int64(hz))
	return nil
}

// Step 推进一次世界：碰撞 → 广播 Hit → 广播全部子弹快照
func (m *Match) Step(dt float64) TickResult {
	res := m.world.AdvanceAndCollide(dt)
	m.metrics.AddHits(len(res.Hits))
	m.metrics.AddExpired(res.Expired)
	for _, h := range res.Hits {
		Log.Debugw("hit", "owner", h.Owner, "victim", h.Victim)
		m.Broadcast(FormatHit(h), NoExclude)
	}
	for _, p := range res.Survivors {
		m.Broadcast(FormatBullet(p), NoExclude)
	}
	return res
}

// RunTicker 固定频率驱动 Step，直到 ctx 取消。
// dt 取两次迭代开始之间的实际间隔；某次工作超时只会让后续 Tick 晚到，不会跳过或合并。
func (m *Match) RunTicker(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	last := time.Now()
	for {
		start := time.Now()
		dt := start.Sub(last).Seconds()
		last = start

		m.Step(dt)

		elapsed := time.Since(start)
		m.metrics.AddTick(elapsed.Nanoseconds())

		period := time.Second / time.Duration(m.TickRate())
		wait := period - elapsed
		if wait <= 0 {
			if err := ctx.Err(); err != nil {
				return nil
			}
			continue
		}
		// go1.23 起 Reset 无需先排空 timer.C
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}
