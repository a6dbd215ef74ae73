package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"spacedeck/protocol"
	"spacedeck/transport"
)

// ErrNotRegistered 在注册成功之前发送命令的返回错误。
// 未绑定 gameId 的编码器不得发出命令
var ErrNotRegistered = errors.New("controller: not registered")

// Controller 控制器客户端：注册进一局游戏后，把规格化命令
// 包上 gameId 发往注册表。命令发送是发后不理，只有注册
// 走一次请求/确认往返
type Controller struct {
	ch      transport.Channel
	codec   *Codec
	sampler *OrientationSampler
	log     *zap.SugaredLogger

	mu     sync.Mutex
	gameID string
}

// New 创建控制器客户端。viewport 提供发送端自身视口；
// log 为 nil 时不输出
func New(ch transport.Channel, viewport func() Viewport, log *zap.SugaredLogger) *Controller {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Controller{
		ch:    ch,
		codec: NewCodec(viewport),
		log:   log,
	}
	c.sampler = NewOrientationSampler(OrientationHz, func(e OrientationEvent) {
		c.send(c.codec.Orientation(e))
	})
	return c
}

// Register 用 gameId+joinKey 注册。确认可能永不到达，
// 调用方用 ctx 给定自己的超时上限；成功后才允许发命令
func (c *Controller) Register(ctx context.Context, gameID, key string) error {
	type outcome struct{ err error }
	got := make(chan outcome, 1)

	payload := protocol.RegisterPlayerRequest{GameID: gameID, Key: key}
	err := c.ch.Emit(protocol.EventRegisterPlayer, payload, func(data json.RawMessage) {
		var ok string
		if err := json.Unmarshal(data, &ok); err == nil && ok == protocol.RegisterOK {
			got <- outcome{}
			return
		}
		var failure protocol.RegisterFailure
		if err := json.Unmarshal(data, &failure); err == nil && failure.Error != "" {
			got <- outcome{err: fmt.Errorf("controller: registration rejected: %s", failure.Error)}
			return
		}
		got <- outcome{err: fmt.Errorf("controller: unexpected registration ack: %s", string(data))}
	})
	if err != nil {
		return err
	}

	select {
	case out := <-got:
		if out.err != nil {
			return out.err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	c.gameID = gameID
	c.mu.Unlock()
	c.sampler.Start()
	c.log.Infof("registered: gameId=%s", gameID)
	return nil
}

// Close 停止采样并关闭通道；断开是移除玩家的唯一网络路径
func (c *Controller) Close() error {
	c.sampler.Stop()
	return c.ch.Close()
}

// send 把命令包上绑定的 gameId 发出。未注册时丢弃
func (c *Controller) send(cmd protocol.Command) error {
	c.mu.Lock()
	gameID := c.gameID
	c.mu.Unlock()
	if gameID == "" {
		c.log.Debugf("command before registration dropped: %T", cmd)
		return ErrNotRegistered
	}

	raw, err := protocol.MarshalCommand(cmd)
	if err != nil {
		return err
	}
	return c.ch.Emit(protocol.EventCommand, protocol.CommandMessage{GameID: gameID, Command: raw}, nil)
}

// MouseMove 指针移动
func (c *Controller) MouseMove(e PointerEvent) error {
	return c.send(c.codec.MouseMove(e))
}

// MouseDown 指针按下
func (c *Controller) MouseDown(e PointerEvent) error {
	return c.send(c.codec.MouseDown(e))
}

// MouseUp 指针抬起
func (c *Controller) MouseUp(e PointerEvent) error {
	return c.send(c.codec.MouseUp(e))
}

// TouchMove 触摸移动。返回 true 表示事件已被捕获，
// 宿主应抑制平台默认的滚动/缩放行为
func (c *Controller) TouchMove(e TouchEvent) bool {
	cmd, captured := c.codec.TouchMove(e)
	if cmd != nil {
		_ = c.send(cmd)
	}
	return captured
}

// KeyDown 键按下
func (c *Controller) KeyDown(e KeyEvent) error {
	return c.send(c.codec.KeyDown(e))
}

// KeyUp 键抬起
func (c *Controller) KeyUp(e KeyEvent) error {
	return c.send(c.codec.KeyUp(e))
}

// Orientation 姿态采样交给抽稀器，按固定频率发出
func (c *Controller) Orientation(e OrientationEvent) {
	c.sampler.Offer(e)
}
