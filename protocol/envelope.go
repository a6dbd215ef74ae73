package protocol

import "encoding/json"

// 信道上的逻辑事件名
const (
	EventRegisterGame   = "registerGame"   // 展示端 → 注册表，确认返回 GameCredentials
	EventRegisterPlayer = "registerPlayer" // 控制器 → 注册表，确认返回 "OK" 或 {error}
	EventCommand        = "command"        // 控制器 → 注册表 → 展示端
	EventPlayerAdded    = "playerAdded"    // 注册表 → 展示端
	EventPlayerRemoved  = "playerRemoved"  // 注册表 → 展示端
	EventAck            = "ack"            // 确认回包，Ack 字段对应请求序号
)

// RegisterOK registerPlayer 成功时的确认载荷（线上是裸字符串 "OK"）
const RegisterOK = "OK"

// Envelope WebSocket 文本帧的统一包裹。Ack 非零表示发送端请求确认，
// 对端以 Event=ack、相同 Ack 序号回包
type Envelope struct {
	Event string          `json:"event"`
	Ack   uint64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// GameCredentials registerGame 确认载荷：会话凭据
type GameCredentials struct {
	GameID string `json:"gameId"`
	Key    string `json:"key"`
}

// RegisterPlayerRequest registerPlayer 载荷
type RegisterPlayerRequest struct {
	GameID string `json:"gameId"`
	Key    string `json:"key"`
}

// RegisterFailure registerPlayer 失败时的确认载荷，Error 为可读信息
type RegisterFailure struct {
	Error string `json:"error"`
}

// CommandMessage command 事件载荷。控制器发出时带 GameID；
// 注册表转发给展示端时带 PlayerID。Command 保持原始 JSON，
// 转发过程中逐字节不变
type CommandMessage struct {
	GameID   string          `json:"gameId,omitempty"`
	PlayerID string          `json:"playerId,omitempty"`
	Command  json.RawMessage `json:"command"`
}

// PlayerEvent playerAdded / playerRemoved 载荷
type PlayerEvent struct {
	PlayerID string `json:"playerId"`
}
