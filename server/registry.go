package server

import (
	"encoding/json"

	"go.uber.org/zap"

	"spacedeck/protocol"
	"spacedeck/transport"
)

// binding 一条连接在注册成功后的归属
type binding struct {
	role     string // "display" | "controller"
	gameID   string
	playerID string
}

const (
	roleDisplay    = "display"
	roleController = "controller"
)

// Registry 会话注册表。全部会话与绑定状态只在 loop 协程中读写，
// 外部通过操作通道提交请求，逐条执行完毕，无需加锁
type Registry struct {
	ops     chan registryOp
	done    chan struct{}
	metrics *Metrics
	limits  *Limits
	log     *zap.SugaredLogger

	// 以下字段仅 loop 协程访问
	sessions map[string]*Session
	bindings map[transport.Channel]binding
}

type registryOp interface{ isRegistryOp() }

type registerDisplayOp struct {
	conn  transport.Channel
	reply chan protocol.GameCredentials
}

type registerControllerOp struct {
	conn     transport.Channel
	gameID   string
	key      string
	playerID string
	reply    chan error
}

type routeCommandOp struct {
	conn   transport.Channel // 从连接路由时非 nil，playerID 由绑定解析
	gameID string
	player string
	raw    json.RawMessage
}

type connClosedOp struct {
	conn transport.Channel
}

type sessionCountOp struct {
	reply chan int
}

func (registerDisplayOp) isRegistryOp()    {}
func (registerControllerOp) isRegistryOp() {}
func (routeCommandOp) isRegistryOp()       {}
func (connClosedOp) isRegistryOp()         {}
func (sessionCountOp) isRegistryOp()       {}

// NewRegistry 创建注册表并启动处理协程
func NewRegistry(metrics *Metrics, limits *Limits, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if metrics == nil {
		metrics = &Metrics{}
	}
	if limits == nil {
		limits = NewLimits()
	}
	r := &Registry{
		ops:      make(chan registryOp, 256),
		done:     make(chan struct{}),
		metrics:  metrics,
		limits:   limits,
		log:      log,
		sessions: make(map[string]*Session),
		bindings: make(map[transport.Channel]binding),
	}
	go r.loop()
	return r
}

// Close 停止处理协程；之后提交的操作被丢弃
func (r *Registry) Close() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

func (r *Registry) submit(op registryOp) {
	select {
	case r.ops <- op:
	case <-r.done:
	}
}

// loop 单协程推进：所有注册表状态变更在此逐条执行完毕
func (r *Registry) loop() {
	for {
		select {
		case <-r.done:
			return
		case op := <-r.ops:
			switch op := op.(type) {
			case registerDisplayOp:
				op.reply <- r.registerDisplay(op.conn)
			case registerControllerOp:
				op.reply <- r.registerController(op.conn, op.gameID, op.key, op.playerID)
			case routeCommandOp:
				r.routeCommand(op)
			case connClosedOp:
				r.connectionClosed(op.conn)
			case sessionCountOp:
				op.reply <- len(r.sessions)
			}
		}
	}
}

//--------------------------------------------------------------------------
// 对外接口：把请求投递到 loop 协程

// RegisterDisplay 创建新会话并绑定展示端连接。
// 同一连接重复注册会替换其会话：旧会话整体拆除，旧玩家失效
func (r *Registry) RegisterDisplay(conn transport.Channel) protocol.GameCredentials {
	reply := make(chan protocol.GameCredentials, 1)
	r.submit(registerDisplayOp{conn: conn, reply: reply})
	select {
	case creds := <-reply:
		return creds
	case <-r.done:
		return protocol.GameCredentials{}
	}
}

// RegisterController 校验凭据并把连接绑定为 playerID 的控制器。
// 失败时不产生任何状态变化
func (r *Registry) RegisterController(conn transport.Channel, gameID, key, playerID string) error {
	reply := make(chan error, 1)
	r.submit(registerControllerOp{conn: conn, gameID: gameID, key: key, playerID: playerID, reply: reply})
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrUnknownSession
	}
}

// RouteCommand 把命令转发给指定会话中的存活玩家；
// 玩家或会话不存在时静默丢弃（迟到命令是预期竞态）
func (r *Registry) RouteCommand(gameID, playerID string, raw json.RawMessage) {
	r.submit(routeCommandOp{gameID: gameID, player: playerID, raw: raw})
}

// RouteFromConn 从控制器连接路由命令，玩家身份由连接绑定解析；
// 未绑定的连接只允许注册，其命令被丢弃
func (r *Registry) RouteFromConn(conn transport.Channel, gameID string, raw json.RawMessage) {
	r.submit(routeCommandOp{conn: conn, gameID: gameID, raw: raw})
}

// ConnectionClosed 连接断开通知：控制器断开移除其玩家，
// 展示端断开拆除整个会话
func (r *Registry) ConnectionClosed(conn transport.Channel) {
	r.submit(connClosedOp{conn: conn})
}

// SessionCount 存活会话数（监控用）
func (r *Registry) SessionCount() int {
	reply := make(chan int, 1)
	r.submit(sessionCountOp{reply: reply})
	select {
	case n := <-reply:
		return n
	case <-r.done:
		return 0
	}
}

//--------------------------------------------------------------------------
// 以下方法仅在 loop 协程中调用

func (r *Registry) registerDisplay(conn transport.Channel) protocol.GameCredentials {
	// 重复注册视同断开重来：先拆掉该连接原有的会话
	if b, ok := r.bindings[conn]; ok && b.role == roleDisplay {
		r.teardownSession(b.gameID)
	}

	s := newSession(conn, r.limits.KeyLen())
	r.sessions[s.GameID] = s
	r.bindings[conn] = binding{role: roleDisplay, gameID: s.GameID}
	r.metrics.IncSessionsCreated()
	r.log.Infof("session created: gameId=%s", s.GameID)
	return protocol.GameCredentials{GameID: s.GameID, Key: s.Key}
}

func (r *Registry) registerController(conn transport.Channel, gameID, key, playerID string) error {
	// 展示端连接不得兼任控制器：凭据正确与否都直接拒绝，
	// 不触碰会话状态
	if prev, ok := r.bindings[conn]; ok && prev.role == roleDisplay {
		r.metrics.IncRegisterRejected()
		return ErrAlreadyDisplay
	}
	s, ok := r.sessions[gameID]
	if !ok {
		r.metrics.IncRegisterRejected()
		return ErrUnknownSession
	}
	if s.Key != key {
		r.metrics.IncRegisterRejected()
		return ErrInvalidKey
	}
	if playerID == "" {
		playerID = NewPlayerID()
	}

	// 校验通过后才清理旧的控制器绑定（换会话或换玩家 id）：
	// 失败路径不产生任何状态变化
	if prev, ok := r.bindings[conn]; ok && (prev.gameID != gameID || prev.playerID != playerID) {
		r.connectionClosed(conn)
	}

	_, exists := s.players[playerID]
	s.players[playerID] = conn
	r.bindings[conn] = binding{role: roleController, gameID: gameID, playerID: playerID}
	r.metrics.IncRegistered()

	// 每个玩家 id 恰好通知展示端一次
	if !exists {
		r.emitToDisplay(s, protocol.EventPlayerAdded, protocol.PlayerEvent{PlayerID: playerID})
	}
	r.log.Infof("controller registered: gameId=%s playerId=%s", gameID, playerID)
	return nil
}

func (r *Registry) routeCommand(op routeCommandOp) {
	playerID := op.player
	if op.conn != nil {
		b, ok := r.bindings[op.conn]
		if !ok || b.role != roleController {
			// 未绑定连接发来的命令，丢弃
			r.metrics.IncUnknownPlayer()
			return
		}
		if op.gameID != "" && op.gameID != b.gameID {
			// 声称的 gameId 与绑定不符，丢弃
			r.metrics.IncUnknownSession()
			return
		}
		op.gameID = b.gameID
		playerID = b.playerID
	}

	s, ok := r.sessions[op.gameID]
	if !ok {
		r.metrics.IncUnknownSession()
		r.log.Debugf("command for unknown session dropped: gameId=%s", op.gameID)
		return
	}
	if _, ok := s.players[playerID]; !ok {
		// 断开后迟到的命令，预期内，静默丢弃
		r.metrics.IncUnknownPlayer()
		r.log.Debugf("command for unknown player dropped: gameId=%s playerId=%s", op.gameID, playerID)
		return
	}

	// 原样转发，坐标等载荷逐字节不变，接收端不得重新缩放
	r.emitToDisplay(s, protocol.EventCommand, protocol.CommandMessage{PlayerID: playerID, Command: op.raw})
	r.metrics.IncCommandsRouted()
}

func (r *Registry) connectionClosed(conn transport.Channel) {
	b, ok := r.bindings[conn]
	if !ok {
		return
	}
	delete(r.bindings, conn)

	switch b.role {
	case roleController:
		s, ok := r.sessions[b.gameID]
		if !ok {
			return
		}
		// 只移除属于这条连接的玩家
		if cur, ok := s.players[b.playerID]; ok && cur == conn {
			delete(s.players, b.playerID)
			r.emitToDisplay(s, protocol.EventPlayerRemoved, protocol.PlayerEvent{PlayerID: b.playerID})
			r.log.Infof("player removed: gameId=%s playerId=%s", b.gameID, b.playerID)
		}
	case roleDisplay:
		r.teardownSession(b.gameID)
	}
}

// teardownSession 拆除会话并使全部玩家连接失效
func (r *Registry) teardownSession(gameID string) {
	s, ok := r.sessions[gameID]
	if !ok {
		return
	}
	delete(r.sessions, gameID)
	for id, conn := range s.players {
		delete(r.bindings, conn)
		_ = conn.Close()
		r.log.Debugf("player invalidated: gameId=%s playerId=%s", gameID, id)
	}
	r.metrics.IncSessionsClosed()
	r.log.Infof("session closed: gameId=%s", gameID)
}

func (r *Registry) emitToDisplay(s *Session, event string, payload any) {
	if s.display == nil {
		return
	}
	if err := s.display.Emit(event, payload, nil); err != nil {
		r.log.Debugf("emit %s to display failed: gameId=%s err=%v", event, s.GameID, err)
	}
}
