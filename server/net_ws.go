package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"spacedeck/protocol"
	"spacedeck/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// Gateway WebSocket 接入层：升级连接，在信封与注册表之间搬运。
// 展示端与控制器走同一端点，第一条注册事件决定连接角色
type Gateway struct {
	reg     *Registry
	limits  *Limits
	metrics *Metrics
	log     *zap.SugaredLogger
}

// NewGateway 创建接入层
func NewGateway(reg *Registry, log *zap.SugaredLogger) *Gateway {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gateway{reg: reg, limits: reg.limits, metrics: reg.metrics, log: log}
}

// HandleWS WebSocket 接入：GET /ws
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warnf("upgrade error: %v", err)
		return
	}

	ch := transport.NewWSChannel(ws)
	g.Attach(ch)
	ch.Start()
}

// Attach 在一条通道上布线全部注册表事件。
// 对进程内通道同样适用（本地展示端、测试）
func (g *Gateway) Attach(ch transport.Channel) {
	// 每条连接一个玩家身份；id 由接入层生成，满足调用方提供 id 的约定
	playerID := NewPlayerID()
	msgRate, msgBurst := g.limits.MsgRate()
	limiter := rate.NewLimiter(rate.Limit(msgRate), msgBurst)

	ch.On(protocol.EventRegisterGame, func(data json.RawMessage, reply transport.ReplyFunc) {
		creds := g.reg.RegisterDisplay(ch)
		if reply != nil {
			reply(creds)
		}
	})

	ch.On(protocol.EventRegisterPlayer, func(data json.RawMessage, reply transport.ReplyFunc) {
		var req protocol.RegisterPlayerRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if reply != nil {
				reply(protocol.RegisterFailure{Error: "malformed registration"})
			}
			return
		}
		err := g.reg.RegisterController(ch, req.GameID, req.Key, playerID)
		if reply == nil {
			return
		}
		switch {
		case err == nil:
			reply(protocol.RegisterOK)
		case errors.Is(err, ErrUnknownSession):
			reply(protocol.RegisterFailure{Error: "unknown game id"})
		case errors.Is(err, ErrInvalidKey):
			reply(protocol.RegisterFailure{Error: "invalid key"})
		case errors.Is(err, ErrAlreadyDisplay):
			reply(protocol.RegisterFailure{Error: "already bound as display"})
		default:
			reply(protocol.RegisterFailure{Error: err.Error()})
		}
	})

	ch.On(protocol.EventCommand, func(data json.RawMessage, reply transport.ReplyFunc) {
		if !limiter.Allow() {
			g.metrics.IncRateLimited()
			return
		}
		var msg protocol.CommandMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			g.metrics.IncMalformed()
			g.log.Debugf("malformed command envelope dropped: %v", err)
			return
		}
		// 先校验命令可解析再转发；转发的是原始字节，载荷不变
		if _, err := protocol.DecodeCommand(msg.Command); err != nil {
			g.metrics.IncMalformed()
			g.log.Debugf("malformed command dropped: %v", err)
			return
		}
		g.reg.RouteFromConn(ch, msg.GameID, msg.Command)
	})

	ch.OnClose(func() {
		g.reg.ConnectionClosed(ch)
	})
}
