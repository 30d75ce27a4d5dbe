package server

import (
	"encoding/json"
	"net/http"
)

// Handler 对外 HTTP 入口：/ws 接入，其余为管理与监控接口
func (m *Match) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.HandleWS)
	mux.HandleFunc("/admin/config", m.HandleAdminConfig)
	mux.HandleFunc("/admin/players", m.HandleAdminPlayers)
	mux.HandleFunc("/metrics", m.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// HandleAdminConfig 读取运行参数；POST 可热更新 Tick 频率
// GET  /admin/config
// POST /admin/config  {"tickRate":30}
func (m *Match) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	type cfg struct {
		TickRate              *int     `json:"tickRate,omitempty"`
		WorldWidth            *float64 `json:"worldWidth,omitempty"`
		WorldHeight           *float64 `json:"worldHeight,omitempty"`
		PlayerRadius          *float64 `json:"playerRadius,omitempty"`
		ProjectileRadius      *float64 `json:"projectileRadius,omitempty"`
		IdleTimeoutMs         *int     `json:"idleTimeoutMs,omitempty"`
		KeepOrphanProjectiles *bool    `json:"keepOrphanProjectiles,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		rate := m.TickRate()
		cur := cfg{
			TickRate:              &rate,
			WorldWidth:            &m.cfg.WorldWidth,
			WorldHeight:           &m.cfg.WorldHeight,
			PlayerRadius:          &m.cfg.PlayerRadius,
			ProjectileRadius:      &m.cfg.ProjectileRadius,
			IdleTimeoutMs:         &m.cfg.IdleTimeoutMs,
			KeepOrphanProjectiles: &m.cfg.KeepOrphanProjectiles,
		}
		writeJSON(w, cur)
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.TickRate == nil {
			http.Error(w, "only tickRate can be updated", http.StatusBadRequest)
			return
		}
		if err := m.SetTickRate(*body.TickRate); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
		Log.Infof("config updated: tickRate=%d", *body.TickRate)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleAdminPlayers 在线玩家与分数
func (m *Match) HandleAdminPlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"players": m.Sessions()})
}

// HandleMetrics 输出运行指标
func (m *Match) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"players":     m.NumSessions(),
		"projectiles": len(m.world.SnapshotProjectiles()),
		"tickRate":    m.TickRate(),
		"metrics":     m.metrics.Snapshot(),
	}
	writeJSON(w, payload)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
