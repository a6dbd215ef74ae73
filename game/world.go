// Package game 实现展示端核心：玩家生命周期、按键状态机与
// 世界实体的绑定。渲染、资产加载等由外部世界协作方承担
package game

import "sync"

// EntityHandle 世界实体的不透明引用，由世界协作方签发与回收
type EntityHandle interface{}

// World 外部世界协作方。实体只在展示端事件线程上被本包改动
type World interface {
	// SpawnFromTemplate 从飞船模板克隆一个新实体
	SpawnFromTemplate() EntityHandle
	// Remove 把实体交还世界销毁
	Remove(e EntityHandle)
	SetPosition(e EntityHandle, x, y, z float64)
	// SetOrientation 欧拉角，弧度
	SetOrientation(e EntityHandle, x, y, z float64)
	// SetTint 随机视觉标识（RGB，0..1）
	SetTint(e EntityHandle, r, g, b float64)
	// AttachController 把玩家的持续控制状态挂到实体上
	AttachController(e EntityHandle, ctl *ControlState)
}

// MemoryWorld 无渲染的内存世界，供无头展示端与测试使用。
// 实体变更都发生在展示端事件线程上，互斥锁只为测试
// 从其他协程观察存活数兜底
type MemoryWorld struct {
	mu     sync.Mutex
	nextID int
	live   map[*MemoryEntity]struct{}
}

// MemoryEntity 内存实体，字段即最近一次写入的值
type MemoryEntity struct {
	ID                  int
	X, Y, Z             float64
	RotX, RotY, RotZ    float64
	TintR, TintG, TintB float64
	Control             *ControlState
}

func NewMemoryWorld() *MemoryWorld {
	return &MemoryWorld{live: make(map[*MemoryEntity]struct{})}
}

func (w *MemoryWorld) SpawnFromTemplate() EntityHandle {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	e := &MemoryEntity{ID: w.nextID}
	w.live[e] = struct{}{}
	return e
}

func (w *MemoryWorld) Remove(e EntityHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.live, e.(*MemoryEntity))
}

func (w *MemoryWorld) SetPosition(e EntityHandle, x, y, z float64) {
	me := e.(*MemoryEntity)
	me.X, me.Y, me.Z = x, y, z
}

func (w *MemoryWorld) SetOrientation(e EntityHandle, x, y, z float64) {
	me := e.(*MemoryEntity)
	me.RotX, me.RotY, me.RotZ = x, y, z
}

func (w *MemoryWorld) SetTint(e EntityHandle, r, g, b float64) {
	me := e.(*MemoryEntity)
	me.TintR, me.TintG, me.TintB = r, g, b
}

func (w *MemoryWorld) AttachController(e EntityHandle, ctl *ControlState) {
	e.(*MemoryEntity).Control = ctl
}

// LiveCount 当前存活实体数（测试用）
func (w *MemoryWorld) LiveCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.live)
}
