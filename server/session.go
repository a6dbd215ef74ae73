package server

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"spacedeck/transport"
)

// 注册失败的错误分类。其余失败（畸形命令、玩家不存在）
// 属于预期竞态，静默丢弃，不进入错误通道
var (
	ErrUnknownSession = errors.New("unknown session")
	ErrInvalidKey     = errors.New("invalid key")
	ErrAlreadyDisplay = errors.New("already bound as display")
)

// Session 一局游戏：一个权威展示端连接 + 若干控制器玩家。
// gameId 与 joinKey 共同授权控制器注册，仅凭 gameId 不够
type Session struct {
	GameID string
	Key    string

	display transport.Channel
	// 玩家 id → 其控制器通道；本地玩家不经注册表，不在此表中
	players map[string]transport.Channel
}

func newSession(display transport.Channel, keyLen int) *Session {
	return &Session{
		GameID:  newToken(keyLen),
		Key:     newToken(keyLen),
		display: display,
		players: make(map[string]transport.Channel),
	}
}

// newToken 生成不可猜测、URL 安全的标识
func newToken(n int) string {
	t := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > 0 && n < len(t) {
		return t[:n]
	}
	return t
}

// NewPlayerID 为一条控制器连接生成玩家标识
func NewPlayerID() string {
	return "player-" + uuid.NewString()[:8]
}
