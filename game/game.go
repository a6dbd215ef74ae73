package game

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"spacedeck/protocol"
	"spacedeck/transport"
)

// LocalPlayerID 展示端本机玩家的固定标识，不经注册表
const LocalPlayerID = "local"

// Hooks 生成每个新玩家的回调集合；为 nil 时玩家只更新控制状态
type Hooks func(playerID string) PlayerHooks

// Game 展示端核心：持有世界与全部玩家，消费注册表事件。
// 所有玩家与实体变更都发生在通道的接收协程（或测试协程）上；
// 互斥锁只为本机玩家引导与接收协程之间的交叠兜底
type Game struct {
	mu      sync.Mutex
	world   World
	rng     *rand.Rand
	log     *zap.SugaredLogger
	hooks   Hooks
	players map[string]*Player

	ch    transport.Channel
	creds protocol.GameCredentials
}

// NewGame 创建展示端核心。rng 注入以便测试使用固定种子；
// 传 nil 时使用时间种子
func NewGame(world World, rng *rand.Rand, log *zap.SugaredLogger) *Game {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Game{
		world:   world,
		rng:     rng,
		log:     log,
		players: make(map[string]*Player),
	}
}

// SetHooks 设置新玩家的边沿回调工厂，需在玩家加入前调用
func (g *Game) SetHooks(h Hooks) { g.hooks = h }

// Attach 订阅注册表事件。通道断开后会话失效，
// 进程的退出与重连由宿主环境决定
func (g *Game) Attach(ch transport.Channel) {
	g.mu.Lock()
	g.ch = ch
	g.mu.Unlock()

	ch.On(protocol.EventCommand, func(data json.RawMessage, _ transport.ReplyFunc) {
		g.onCommand(data)
	})
	ch.On(protocol.EventPlayerAdded, func(data json.RawMessage, _ transport.ReplyFunc) {
		var ev protocol.PlayerEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.PlayerID == "" {
			return
		}
		g.AddPlayer(ev.PlayerID)
	})
	ch.On(protocol.EventPlayerRemoved, func(data json.RawMessage, _ transport.ReplyFunc) {
		var ev protocol.PlayerEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.PlayerID == "" {
			return
		}
		g.RemovePlayer(ev.PlayerID)
	})
}

// Register 向注册表注册本局游戏，等待凭据确认。
// 协议本身不设超时，调用方用 ctx 给定自己的上限
func (g *Game) Register(ctx context.Context) (protocol.GameCredentials, error) {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	if ch == nil {
		return protocol.GameCredentials{}, errors.New("game: not attached to a channel")
	}

	got := make(chan protocol.GameCredentials, 1)
	err := ch.Emit(protocol.EventRegisterGame, nil, func(data json.RawMessage) {
		var creds protocol.GameCredentials
		if err := json.Unmarshal(data, &creds); err != nil {
			return
		}
		got <- creds
	})
	if err != nil {
		return protocol.GameCredentials{}, err
	}

	select {
	case creds := <-got:
		g.mu.Lock()
		g.creds = creds
		g.mu.Unlock()
		return creds, nil
	case <-ctx.Done():
		return protocol.GameCredentials{}, ctx.Err()
	}
}

// Credentials 最近一次注册得到的凭据
func (g *Game) Credentials() protocol.GameCredentials {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.creds
}

// JoinURL 构造控制器加入链接：<origin>/controller?gameId=..&key=..
// （二维码渲染由宿主页面完成）
func (g *Game) JoinURL(origin string) string {
	creds := g.Credentials()
	q := url.Values{}
	q.Set("gameId", creds.GameID)
	q.Set("key", creds.Key)
	return origin + "/controller?" + q.Encode()
}

// AddPlayer 添加玩家。已存在时是无操作：一个玩家 id
// 任何时刻恰好对应一个存活实体
func (g *Game) AddPlayer(id string) *Player {
	if id == "" {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.players[id]; ok {
		return p
	}
	var hooks PlayerHooks
	if g.hooks != nil {
		hooks = g.hooks(id)
	}
	p := newPlayer(id, g.world, g.rng, hooks)
	g.players[id] = p
	g.log.Infof("player added: %s", id)
	return p
}

// RemovePlayer 移除玩家并把实体交还世界。不存在时是无操作
func (g *Game) RemovePlayer(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.players[id]
	if !ok {
		return
	}
	p.destroy()
	delete(g.players, id)
	g.log.Infof("player removed: %s", id)
}

// Player 按 id 取玩家，不存在返回 nil
func (g *Game) Player(id string) *Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.players[id]
}

// PlayerCount 当前玩家数
func (g *Game) PlayerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

// PlayerIDs 当前全部玩家 id
func (g *Game) PlayerIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.players))
	for id := range g.players {
		ids = append(ids, id)
	}
	return ids
}

// AddLocalPlayer 引导本机玩家：展示端宿主自己的键盘输入
// 走与网络命令相同的路径
func (g *Game) AddLocalPlayer() *Player {
	return g.AddPlayer(LocalPlayerID)
}

// HandleCommand 把命令交给对应玩家。玩家不存在时静默丢弃：
// 断开后迟到的命令是预期竞态，不是故障。
// 命令在锁内应用，回调不得反过来调用 Game 的方法
func (g *Game) HandleCommand(playerID string, cmd protocol.Command) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.players[playerID]
	if !ok {
		g.log.Debugf("command for unknown player dropped: %s", playerID)
		return
	}
	p.Apply(cmd)
}

// ControlState 玩家当前控制状态的副本；玩家不存在时第二个返回值为 false
func (g *Game) ControlState(playerID string) (ControlState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.players[playerID]
	if !ok {
		return ControlState{}, false
	}
	return *p.input.State(), true
}

// onCommand 解出注册表转发的命令。载荷畸形时静默丢弃，
// 绝不让事件回调崩溃
func (g *Game) onCommand(data json.RawMessage) {
	var msg protocol.CommandMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		g.log.Debugf("malformed command envelope dropped: %v", err)
		return
	}
	if msg.PlayerID == "" {
		return
	}
	cmd, err := protocol.DecodeCommand(msg.Command)
	if err != nil {
		g.log.Debugf("malformed command dropped: %v", err)
		return
	}
	g.HandleCommand(msg.PlayerID, cmd)
}
