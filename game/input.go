package game

import "spacedeck/protocol"

// ControlState 玩家的持续控制状态，由离散按键事件开关。
// 与连续型命令（rotate、mousemove）解耦
type ControlState struct {
	RotatingLeft  bool
	RotatingRight bool
	Accelerating  bool
}

// ControlHooks 边沿回调：仅在对应标志翻转时触发一次
type ControlHooks struct {
	StartRotatingLeft  func()
	StopRotatingLeft   func()
	StartRotatingRight func()
	StopRotatingRight  func()
	StartAccelerating  func()
	StopAccelerating   func()
}

// control 四个离散控制中的一个
type control int

const (
	ctlNone control = iota
	ctlLeft
	ctlRight
	ctlAccel
)

// controlFor 固定键位映射：左右方向键与空格。
// 数字键码与符号名都接受，未映射的键返回 ctlNone
func controlFor(k protocol.Key) control {
	switch k {
	case "37", "ArrowLeft", "Left":
		return ctlLeft
	case "39", "ArrowRight", "Right":
		return ctlRight
	case "32", " ", "Space", "Spacebar":
		return ctlAccel
	default:
		return ctlNone
	}
}

// InputStateMachine 把瞬时按键事件折算为持久的开关状态。
// 重复的 keydown 不会重复触发 start；keyup 同理
type InputStateMachine struct {
	state ControlState
	hooks ControlHooks
}

func NewInputStateMachine(hooks ControlHooks) *InputStateMachine {
	return &InputStateMachine{hooks: hooks}
}

// State 当前控制状态的指针，供世界协作方挂到实体上
func (m *InputStateMachine) State() *ControlState { return &m.state }

// KeyDown 处理按下：false→true 边沿触发 start，未映射键忽略
func (m *InputStateMachine) KeyDown(k protocol.Key) {
	switch controlFor(k) {
	case ctlLeft:
		if !m.state.RotatingLeft {
			m.state.RotatingLeft = true
			fire(m.hooks.StartRotatingLeft)
		}
	case ctlRight:
		if !m.state.RotatingRight {
			m.state.RotatingRight = true
			fire(m.hooks.StartRotatingRight)
		}
	case ctlAccel:
		if !m.state.Accelerating {
			m.state.Accelerating = true
			fire(m.hooks.StartAccelerating)
		}
	}
}

// KeyUp 处理抬起：true→false 边沿触发 stop
func (m *InputStateMachine) KeyUp(k protocol.Key) {
	switch controlFor(k) {
	case ctlLeft:
		if m.state.RotatingLeft {
			m.state.RotatingLeft = false
			fire(m.hooks.StopRotatingLeft)
		}
	case ctlRight:
		if m.state.RotatingRight {
			m.state.RotatingRight = false
			fire(m.hooks.StopRotatingRight)
		}
	case ctlAccel:
		if m.state.Accelerating {
			m.state.Accelerating = false
			fire(m.hooks.StopAccelerating)
		}
	}
}

func fire(fn func()) {
	if fn != nil {
		fn()
	}
}
