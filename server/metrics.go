package server

import (
	"sync/atomic"
)

// Metrics 记录注册表运行期的关键指标（用于监控与调试）
type Metrics struct {
	SessionsCreated       int64 // 创建过的会话数
	SessionsClosed        int64 // 已销毁的会话数
	ControllersRegistered int64 // 控制器注册成功数
	RegisterRejected      int64 // 注册被拒绝数（未知会话或密钥错误）
	CommandsRouted        int64 // 成功转发给展示端的命令数
	MalformedDropped      int64 // 因载荷畸形被丢弃的命令数
	UnknownPlayerDropped  int64 // 因玩家不存在被丢弃的命令数
	UnknownSessionDropped int64 // 因会话不存在被丢弃的命令数
	RateLimited           int64 // 因限流被丢弃的入站帧数
}

func (m *Metrics) IncSessionsCreated()  { atomic.AddInt64(&m.SessionsCreated, 1) }
func (m *Metrics) IncSessionsClosed()   { atomic.AddInt64(&m.SessionsClosed, 1) }
func (m *Metrics) IncRegistered()       { atomic.AddInt64(&m.ControllersRegistered, 1) }
func (m *Metrics) IncRegisterRejected() { atomic.AddInt64(&m.RegisterRejected, 1) }
func (m *Metrics) IncCommandsRouted()   { atomic.AddInt64(&m.CommandsRouted, 1) }
func (m *Metrics) IncMalformed()        { atomic.AddInt64(&m.MalformedDropped, 1) }
func (m *Metrics) IncUnknownPlayer()    { atomic.AddInt64(&m.UnknownPlayerDropped, 1) }
func (m *Metrics) IncUnknownSession()   { atomic.AddInt64(&m.UnknownSessionDropped, 1) }
func (m *Metrics) IncRateLimited()      { atomic.AddInt64(&m.RateLimited, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"sessions_created":        atomic.LoadInt64(&m.SessionsCreated),
		"sessions_closed":         atomic.LoadInt64(&m.SessionsClosed),
		"controllers_registered":  atomic.LoadInt64(&m.ControllersRegistered),
		"register_rejected":       atomic.LoadInt64(&m.RegisterRejected),
		"commands_routed":         atomic.LoadInt64(&m.CommandsRouted),
		"malformed_dropped":       atomic.LoadInt64(&m.MalformedDropped),
		"unknown_player_dropped":  atomic.LoadInt64(&m.UnknownPlayerDropped),
		"unknown_session_dropped": atomic.LoadInt64(&m.UnknownSessionDropped),
		"rate_limited":            atomic.LoadInt64(&m.RateLimited),
	}
}
