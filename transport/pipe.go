package transport

import (
	"spacedeck/protocol"
)

const pipeBuffer = 256

// PipeChannel 进程内通道的一端。两端成对创建，投递经过
// JSON 编解码，行为与网络通道一致，供测试与本地展示端使用
type PipeChannel struct {
	*endpoint
	peer    *PipeChannel
	inbox   chan protocol.Envelope
	done    chan struct{}
	started bool
}

// Pipe 创建一对互联的进程内通道。
// 任意一端 Close 会同时断开两端
func Pipe() (*PipeChannel, *PipeChannel) {
	a := &PipeChannel{inbox: make(chan protocol.Envelope, pipeBuffer), done: make(chan struct{})}
	b := &PipeChannel{inbox: make(chan protocol.Envelope, pipeBuffer), done: make(chan struct{})}
	a.peer, b.peer = b, a
	a.endpoint = newEndpoint(a.deliver)
	b.endpoint = newEndpoint(b.deliver)
	return a, b
}

// Start 启动接收协程，重复调用无效果
func (p *PipeChannel) Start() {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.readLoop()
}

// deliver 把信封送进对端收件箱（非阻塞，满则丢弃）
func (p *PipeChannel) deliver(env protocol.Envelope) error {
	select {
	case <-p.peer.done:
		return ErrClosed
	default:
	}
	select {
	case p.peer.inbox <- env:
	default:
		// 与网络通道一致：拥塞即丢
	}
	return nil
}

// Close 断开两端并触发双方的断开回调
func (p *PipeChannel) Close() error {
	p.closeLocal()
	p.peer.closeLocal()
	return nil
}

func (p *PipeChannel) closeLocal() {
	fns, first := p.markClosed()
	if !first {
		return
	}
	close(p.done)
	for _, fn := range fns {
		fn()
	}
}

func (p *PipeChannel) readLoop() {
	for {
		select {
		case <-p.done:
			return
		case env := <-p.inbox:
			p.dispatch(env)
		}
	}
}
