package server

import (
	"encoding/json"
	"net/http"
	"sync"
)

// Limits 运行期可热更新的限制参数
type Limits struct {
	mu sync.RWMutex

	msgRate  float64 // 每连接每秒允许的命令帧数
	msgBurst int     // 命令帧突发上限
	keyLen   int     // gameId / joinKey 长度
}

// NewLimits 返回默认限制
func NewLimits() *Limits {
	return &Limits{
		msgRate:  120, // 20Hz 陀螺仪 + 指针流的余量
		msgBurst: 240,
		keyLen:   32,
	}
}

func (l *Limits) MsgRate() (float64, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.msgRate, l.msgBurst
}

func (l *Limits) KeyLen() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.keyLen
}

// HandleAdminConfig 提供限制参数的读取与更新（热更新基本规则）
// GET /admin/config          返回当前配置
// POST /admin/config         以 JSON 载荷更新部分字段
func (g *Gateway) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	type cfg struct {
		MsgRate  *float64 `json:"msgRate,omitempty"`
		MsgBurst *int     `json:"msgBurst,omitempty"`
		KeyLen   *int     `json:"keyLen,omitempty"`
	}

	l := g.limits
	switch r.Method {
	case http.MethodGet:
		l.mu.RLock()
		cur := cfg{MsgRate: &l.msgRate, MsgBurst: &l.msgBurst, KeyLen: &l.keyLen}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cur)
		l.mu.RUnlock()
		return
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		l.mu.Lock()
		if body.MsgRate != nil && *body.MsgRate > 0 {
			l.msgRate = *body.MsgRate
		}
		if body.MsgBurst != nil && *body.MsgBurst > 0 {
			l.msgBurst = *body.MsgBurst
		}
		if body.KeyLen != nil && *body.KeyLen >= 8 && *body.KeyLen <= 32 {
			l.keyLen = *body.KeyLen
		}
		rate, burst := l.msgRate, l.msgBurst
		keyLen := l.keyLen
		l.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		g.log.Infof("config updated: msgRate=%.1f msgBurst=%d keyLen=%d", rate, burst, keyLen)
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
}

// HandleMetrics 输出注册表运行指标
// GET /metrics
func (g *Gateway) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"sessions": g.reg.SessionCount(),
		"metrics":  g.metrics.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
