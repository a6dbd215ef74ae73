package game

import (
	"math"
	"math/rand"

	"spacedeck/protocol"
)

// 随机出生区域：以原点为中心的正方形
const spawnHalfExtent = 250.0

// ContinuousHandlers 连续型命令的设备相关处理器。
// 这些命令绕过按键状态机，作为直接更新应用；为 nil 时忽略
type ContinuousHandlers struct {
	Rotate    func(x, y, z float64)
	MouseMove func(x, y float64)
	MouseDown func(x, y float64)
	MouseUp   func(x, y float64)
}

// PlayerHooks 新玩家的回调集合：按键边沿回调与连续型命令处理器
type PlayerHooks struct {
	Control    ControlHooks
	Continuous ContinuousHandlers
}

// Player 展示端玩家聚合：外部标识 + 存活实体 + 控制状态
type Player struct {
	ID string

	world      World
	entity     EntityHandle
	input      *InputStateMachine
	continuous ContinuousHandlers
}

// newPlayer 克隆实体、随机化出生位置与配色，并挂上控制状态。
// 每次创建都是全新实体，移除后重建不会复用旧句柄
func newPlayer(id string, world World, rng *rand.Rand, hooks PlayerHooks) *Player {
	p := &Player{
		ID:         id,
		world:      world,
		entity:     world.SpawnFromTemplate(),
		input:      NewInputStateMachine(hooks.Control),
		continuous: hooks.Continuous,
	}

	// 位置均匀落在出生正方形内，朝向均匀取 [0, 2π)
	x := rng.Float64()*2*spawnHalfExtent - spawnHalfExtent
	y := rng.Float64()*2*spawnHalfExtent - spawnHalfExtent
	world.SetPosition(p.entity, x, 0, y)
	world.SetOrientation(p.entity, 0, 2*math.Pi*rng.Float64(), 0)
	world.SetTint(p.entity, rng.Float64(), rng.Float64(), rng.Float64())
	world.AttachController(p.entity, p.input.State())

	if p.continuous.Rotate == nil {
		// 默认姿态命令直接写实体朝向
		p.continuous.Rotate = func(rx, ry, rz float64) {
			world.SetOrientation(p.entity, rx, ry, rz)
		}
	}
	return p
}

// destroy 把实体交还世界并废弃玩家状态
func (p *Player) destroy() {
	p.world.Remove(p.entity)
	p.entity = nil
}

// Entity 玩家当前持有的实体句柄
func (p *Player) Entity() EntityHandle { return p.entity }

// ControlState 当前控制状态的副本
func (p *Player) ControlState() ControlState { return *p.input.State() }

// Apply 应用一条命令。按键走状态机，连续型命令走直接处理器；
// 命令集合封闭，新增种类时编译器会指出此处需要扩展
func (p *Player) Apply(cmd protocol.Command) {
	switch c := cmd.(type) {
	case protocol.KeyDown:
		p.input.KeyDown(c.Key)
	case protocol.KeyUp:
		p.input.KeyUp(c.Key)
	case protocol.Rotate:
		if p.continuous.Rotate != nil {
			p.continuous.Rotate(c.X, c.Y, c.Z)
		}
	case protocol.MouseMove:
		if p.continuous.MouseMove != nil {
			p.continuous.MouseMove(c.X, c.Y)
		}
	case protocol.MouseDown:
		if p.continuous.MouseDown != nil {
			p.continuous.MouseDown(c.X, c.Y)
		}
	case protocol.MouseUp:
		if p.continuous.MouseUp != nil {
			p.continuous.MouseUp(c.X, c.Y)
		}
	}
}
