// Package transport 提供会话级双向事件通道的抽象与两种实现：
// 基于 gorilla/websocket 的网络通道，以及测试与本地展示端
// 使用的进程内管道。通道语义：同一发送端内先发先到，
// 单次发送至多投递一次，无自动重试
package transport

import "encoding/json"

// AckFunc 确认回调，参数为对端随确认返回的原始 JSON
type AckFunc func(data json.RawMessage)

// ReplyFunc 事件处理方回发确认的回调；对端未请求确认时为 nil
type ReplyFunc func(payload any)

// Handler 事件处理回调，在通道的接收协程内逐条执行完毕
type Handler func(data json.RawMessage, reply ReplyFunc)

// Channel 双向事件通道
type Channel interface {
	// Emit 发送一个事件。ack 非 nil 时请求对端确认；
	// 发送本身不阻塞等待确认
	Emit(event string, payload any, ack AckFunc) error
	// On 注册事件处理器，同名事件后注册者覆盖先注册者
	On(event string, h Handler)
	// OnClose 注册断开回调；连接断开是玩家被移除的唯一网络路径
	OnClose(fn func())
	// Close 主动关闭通道，断开回调仍会触发一次
	Close() error
}
