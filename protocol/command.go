package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// 命令类型的线上标识，与控制器页面发出的 type 字段一致
const (
	CmdRotate    = "rotate"
	CmdMouseMove = "mousemove"
	CmdMouseDown = "mousedown"
	CmdMouseUp   = "mouseup"
	CmdKeyDown   = "keydown"
	CmdKeyUp     = "keyup"
)

// ErrMalformedCommand 表示命令缺少类型或载荷无法解析；
// 调用方应静默丢弃，不回传给发送端
var ErrMalformedCommand = errors.New("malformed command")

// Command 输入命令的封闭集合。新增命令种类必须同时扩展
// MarshalCommand 与 DecodeCommand 的分支，编译期即可发现遗漏
type Command interface {
	isCommand()
}

// Rotate 设备姿态的绝对采样（设备坐标系角度，beta→X，gamma→Y，alpha→Z）
type Rotate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// MouseMove 指针位置，坐标已由发送端按自身视口归一化。
// 快速拖动时可能短暂越出 [0,1]，接收端不得裁剪或拒收
type MouseMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MouseDown 指针按下，坐标含义同 MouseMove
type MouseDown struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MouseUp 指针抬起，坐标含义同 MouseMove
type MouseUp struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// KeyDown 按键按下，键标识原样透传
type KeyDown struct {
	Key Key `json:"key"`
}

// KeyUp 按键抬起
type KeyUp struct {
	Key Key `json:"key"`
}

func (Rotate) isCommand()    {}
func (MouseMove) isCommand() {}
func (MouseDown) isCommand() {}
func (MouseUp) isCommand()   {}
func (KeyDown) isCommand()   {}
func (KeyUp) isCommand()     {}

// wireCommand 线上形态：{"type":"mousemove","data":{...}}
type wireCommand struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalCommand 把命令编码为线上 JSON
func MarshalCommand(c Command) (json.RawMessage, error) {
	var typ string
	switch c.(type) {
	case Rotate:
		typ = CmdRotate
	case MouseMove:
		typ = CmdMouseMove
	case MouseDown:
		typ = CmdMouseDown
	case MouseUp:
		typ = CmdMouseUp
	case KeyDown:
		typ = CmdKeyDown
	case KeyUp:
		typ = CmdKeyUp
	default:
		return nil, fmt.Errorf("unknown command %T", c)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireCommand{Type: typ, Data: data})
}

// DecodeCommand 解析线上 JSON 为具体命令。
// 类型缺失、类型未知或载荷解析失败均返回 ErrMalformedCommand
func DecodeCommand(raw json.RawMessage) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if w.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedCommand)
	}

	unmarshal := func(into any) error {
		if len(w.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(w.Data, into); err != nil {
			return fmt.Errorf("%w: %s data: %v", ErrMalformedCommand, w.Type, err)
		}
		return nil
	}

	switch w.Type {
	case CmdRotate:
		var c Rotate
		if err := unmarshal(&c); err != nil {
			return nil, err
		}
		return c, nil
	case CmdMouseMove:
		var c MouseMove
		if err := unmarshal(&c); err != nil {
			return nil, err
		}
		return c, nil
	case CmdMouseDown:
		var c MouseDown
		if err := unmarshal(&c); err != nil {
			return nil, err
		}
		return c, nil
	case CmdMouseUp:
		var c MouseUp
		if err := unmarshal(&c); err != nil {
			return nil, err
		}
		return c, nil
	case CmdKeyDown:
		var c KeyDown
		if err := unmarshal(&c); err != nil {
			return nil, err
		}
		return c, nil
	case CmdKeyUp:
		var c KeyUp
		if err := unmarshal(&c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedCommand, w.Type)
	}
}
