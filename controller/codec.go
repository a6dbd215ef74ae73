// Package controller 实现控制器客户端：把指针、触摸、键盘与
// 设备姿态等物理输入规格化为协议命令并发往注册表
package controller

import "spacedeck/protocol"

// Viewport 发送端自身视口尺寸；归一化始终用事件发生时刻的值
type Viewport struct {
	Width  float64
	Height float64
}

// PointerEvent 指针事件，坐标为视口内像素
type PointerEvent struct {
	X float64
	Y float64
}

// TouchPoint 一个触点
type TouchPoint struct {
	X float64
	Y float64
}

// TouchEvent 触摸事件，Points 为当前全部活动触点
type TouchEvent struct {
	Points []TouchPoint
}

// KeyEvent 键盘事件，键标识原样携带
type KeyEvent struct {
	Key protocol.Key
}

// OrientationEvent 设备姿态采样（设备坐标系角度）
type OrientationEvent struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

// Codec 把物理输入折算为设备无关的命令。
// 坐标按发送端自身视口归一化（x/width、y/height），
// 接收端不再缩放；越出 [0,1] 的瞬时值不裁剪
type Codec struct {
	viewport func() Viewport
}

// NewCodec 创建编码器，viewport 在每次事件时取值
func NewCodec(viewport func() Viewport) *Codec {
	return &Codec{viewport: viewport}
}

func (c *Codec) normalize(x, y float64) (float64, float64) {
	vp := c.viewport()
	if vp.Width > 0 {
		x /= vp.Width
	}
	if vp.Height > 0 {
		y /= vp.Height
	}
	return x, y
}

// MouseMove 指针移动 → mousemove
func (c *Codec) MouseMove(e PointerEvent) protocol.Command {
	x, y := c.normalize(e.X, e.Y)
	return protocol.MouseMove{X: x, Y: y}
}

// MouseDown 指针按下 → mousedown
func (c *Codec) MouseDown(e PointerEvent) protocol.Command {
	x, y := c.normalize(e.X, e.Y)
	return protocol.MouseDown{X: x, Y: y}
}

// MouseUp 指针抬起 → mouseup
func (c *Codec) MouseUp(e PointerEvent) protocol.Command {
	x, y := c.normalize(e.X, e.Y)
	return protocol.MouseUp{X: x, Y: y}
}

// TouchMove 触摸移动 → mousemove，多个触点时取第一个。
// 第二个返回值恒为 true：捕获触摸的副作用是要求宿主
// 抑制平台默认的滚动/缩放；无触点时不产生命令
func (c *Codec) TouchMove(e TouchEvent) (protocol.Command, bool) {
	if len(e.Points) == 0 {
		return nil, true
	}
	first := e.Points[0]
	x, y := c.normalize(first.X, first.Y)
	return protocol.MouseMove{X: x, Y: y}, true
}

// KeyDown 键按下 → keydown，键标识不做任何映射
func (c *Codec) KeyDown(e KeyEvent) protocol.Command {
	return protocol.KeyDown{Key: e.Key}
}

// KeyUp 键抬起 → keyup
func (c *Codec) KeyUp(e KeyEvent) protocol.Command {
	return protocol.KeyUp{Key: e.Key}
}

// Orientation 姿态采样 → rotate，映射 beta→x，gamma→y，alpha→z
func (c *Codec) Orientation(e OrientationEvent) protocol.Command {
	return protocol.Rotate{X: e.Beta, Y: e.Gamma, Z: e.Alpha}
}
