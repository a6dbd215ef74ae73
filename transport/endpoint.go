package transport

import (
	"encoding/json"
	"errors"
	"sync"

	"spacedeck/protocol"
)

// ErrClosed 通道已关闭后继续 Emit 的返回错误
var ErrClosed = errors.New("transport: channel closed")

// endpoint 通道公共内核：事件分发、确认号配对与关闭通知。
// 具体实现只需提供 sendRaw 把信封送往对端
type endpoint struct {
	mu       sync.Mutex
	handlers map[string]Handler
	acks     map[uint64]AckFunc
	nextAck  uint64
	closeFns []func()
	closed   bool

	sendRaw func(env protocol.Envelope) error
}

func newEndpoint(sendRaw func(protocol.Envelope) error) *endpoint {
	return &endpoint{
		handlers: make(map[string]Handler),
		acks:     make(map[uint64]AckFunc),
		sendRaw:  sendRaw,
	}
}

func (e *endpoint) Emit(event string, payload any, ack AckFunc) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	env := protocol.Envelope{Event: event, Data: data}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if ack != nil {
		e.nextAck++
		env.Ack = e.nextAck
		e.acks[env.Ack] = ack
	}
	e.mu.Unlock()

	return e.sendRaw(env)
}

func (e *endpoint) On(event string, h Handler) {
	e.mu.Lock()
	e.handlers[event] = h
	e.mu.Unlock()
}

func (e *endpoint) OnClose(fn func()) {
	e.mu.Lock()
	e.closeFns = append(e.closeFns, fn)
	e.mu.Unlock()
}

// dispatch 在接收协程内处理一个入站信封，逐条执行完毕
func (e *endpoint) dispatch(env protocol.Envelope) {
	if env.Event == protocol.EventAck {
		e.mu.Lock()
		ack := e.acks[env.Ack]
		delete(e.acks, env.Ack)
		e.mu.Unlock()
		if ack != nil {
			ack(env.Data)
		}
		return
	}

	e.mu.Lock()
	h := e.handlers[env.Event]
	e.mu.Unlock()
	if h == nil {
		// 未注册的事件按至多一次语义丢弃
		return
	}

	var reply ReplyFunc
	if env.Ack != 0 {
		ackID := env.Ack
		reply = func(payload any) {
			data, err := marshalPayload(payload)
			if err != nil {
				return
			}
			_ = e.sendRaw(protocol.Envelope{Event: protocol.EventAck, Ack: ackID, Data: data})
		}
	}
	h(env.Data, reply)
}

// markClosed 置关闭标记。首次调用返回 true 与待触发的断开回调，
// 之后的调用返回 false
func (e *endpoint) markClosed() ([]func(), bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, false
	}
	e.closed = true
	fns := e.closeFns
	e.closeFns = nil
	e.acks = make(map[uint64]AckFunc)
	return fns, true
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}
