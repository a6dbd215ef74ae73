package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"spacedeck/protocol"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10 // 必须小于 wsPongWait
	wsReadLimit  = 1 << 20             // 1MB
	wsSendBuffer = 64
)

// WSChannel gorilla/websocket 上的通道实现。
// 写协程独占底层连接的写端并周期发 ping 维持对端读超时；
// 读协程逐条分发入站信封
type WSChannel struct {
	*endpoint
	ws      *websocket.Conn
	send    chan []byte
	started bool

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

// NewWSChannel 包装一条已升级的 WebSocket 连接。
// 需在注册完事件处理器后调用 Start 启动收发协程
func NewWSChannel(ws *websocket.Conn) *WSChannel {
	c := &WSChannel{
		ws:         ws,
		send:       make(chan []byte, wsSendBuffer),
		writeWait:  wsWriteWait,
		pongWait:   wsPongWait,
		pingPeriod: wsPingPeriod,
	}
	c.endpoint = newEndpoint(c.enqueue)
	return c
}

// Dial 连接远端通道（控制器与展示端客户端使用）
func Dial(ctx context.Context, url string) (*WSChannel, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewWSChannel(ws), nil
}

// Start 启动读写协程，重复调用无效果
func (c *WSChannel) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

// enqueue 把信封压入发送队列（非阻塞，满则丢弃以保证实时性）。
// closed 标记在锁内检查，保证关闭后不再向已关闭的队列入队
func (c *WSChannel) enqueue(env protocol.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- b:
	default:
		// 投递至多一次：发送拥塞时丢弃，避免背压拖慢其他连接
	}
	return nil
}

// Close 主动关闭连接；断开回调由读协程退出时触发
func (c *WSChannel) Close() error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	err := c.ws.Close()
	if !started {
		// 协程未启动时没有人触发断开回调，在此补上
		c.fireClose()
	}
	return err
}

// writePump 独立协程，从发送队列写出到 WS，并按节拍发 ping
// 刷新对端的读超时。发送队列关闭后写完余量即退出
func (c *WSChannel) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()
	defer c.ws.Close()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取入站帧并逐条执行完毕后再读下一条。
// 读超时由入站帧与对端 ping 换来的 pong 刷新
func (c *WSChannel) readPump() {
	defer c.ws.Close()
	defer c.fireClose()
	c.ws.SetReadLimit(wsReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
		var env protocol.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			// 非法帧直接跳过，连接继续存活
			continue
		}
		c.dispatch(env)
	}
}

func (c *WSChannel) fireClose() {
	fns, first := c.markClosed()
	if !first {
		return
	}
	// 关闭发送队列以结束写协程；closed 标记保证其后无人入队
	close(c.send)
	for _, fn := range fns {
		fn()
	}
}
