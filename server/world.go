package server

import (
	"maps"
	"slices"
	"sync"
)

// World 权威世界状态：玩家与在飞子弹。
// 所有修改只能经由下面的方法，每个方法内部持锁，彼此原子；
// 方法内不做任何网络 I/O。
type World struct {
	mu          sync.Mutex
	players     map[PlayerID]*Player
	projectiles []Projectile

	width, height    float64
	playerRadius     float64
	projectileRadius float64
	keepOrphans      bool
}

// TickResult 一次推进的结果
type TickResult struct {
	Hits      []Hit
	Survivors []Projectile
	Expired   int // 越界移除的子弹数
}

// NewWorld 按配置创建空世界
func NewWorld(cfg Config) *World {
	return &World{
		players:          make(map[PlayerID]*Player),
		width:            cfg.WorldWidth,
		height:           cfg.WorldHeight,
		playerRadius:     cfg.PlayerRadius,
		projectileRadius: cfg.ProjectileRadius,
		keepOrphans:      cfg.KeepOrphanProjectiles,
	}
}

// UpsertPlayer 不存在则插入，存在则仅覆盖位置（分数不变）
func (w *World) UpsertPlayer(id PlayerID, pos Vec2) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.players[id]; ok {
		p.Pos = pos
		return
	}
	w.players[id] = &Player{ID: id, Pos: pos}
}

// RemovePlayer 删除玩家；除非配置保留孤儿子弹，否则一并删除其子弹。
// 玩家不存在时为空操作。
func (w *World) RemovePlayer(id PlayerID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.players, id)
	if w.keepOrphans {
		return
	}
	w.projectiles = slices.DeleteFunc(w.projectiles, func(p Projectile) bool {
		return p.Owner == id
	})
}

// AddProjectile 追加一颗子弹，不校验 owner 是否在线
func (w *World) AddProjectile(owner PlayerID, pos Vec2, dir Direction, speed float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.projectiles = append(w.projectiles, Projectile{
		Owner:  owner,
		Pos:    pos,
		Dir:    dir,
		Speed:  speed,
		Radius: w.projectileRadius,
	})
}

// AdvanceAndCollide 推进所有子弹 dt 秒，然后做碰撞与越界判定：
//   - 玩家按 id 升序检测，每颗子弹每 tick 至多命中一人；
//   - 子弹不会命中自己的主人；
//   - 命中时主人仍在线则加分，命中事件总会产生；
//   - 命中先于越界判定，被命中的子弹不再做越界检查。
func (w *World) AdvanceAndCollide(dt float64) TickResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := slices.Sorted(maps.Keys(w.players))
	var res TickResult
	kept := w.projectiles[:0]
	for _, p := range w.projectiles {
		p.advance(dt)
		if victim, ok := w.firstVictim(p, ids); ok {
			if owner, live := w.players[p.Owner]; live {
				owner.Score++
			}
			res.Hits = append(res.Hits, Hit{Owner: p.Owner, Victim: victim})
			continue
		}
		if outOfBounds(p.Pos, w.width, w.height) {
			res.Expired++
			continue
		}
		kept = append(kept, p)
	}
	clear(w.projectiles[len(kept):])
	w.projectiles = kept
	res.Survivors = slices.Clone(kept)
	return res
}

func (w *World) firstVictim(p Projectile, ids []PlayerID) (PlayerID, bool) {
	for _, id := range ids {
		if id == p.Owner {
			continue
		}
		if circlesCollide(p.Pos, p.Radius, w.players[id].Pos, w.playerRadius) {
			return id, true
		}
	}
	return 0, false
}

// SnapshotProjectiles 只读副本，供广播
func (w *World) SnapshotProjectiles() []Projectile {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.projectiles)
}

// Players 按 id 升序返回玩家副本
func (w *World) Players() []Player {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Player, 0, len(w.players))
	for _, id := range slices.Sorted(maps.Keys(w.players)) {
		out = append(out, *w.players[id])
	}
	return out
}

// Player 查询单个玩家
func (w *World) Player(id PlayerID) (Player, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}
