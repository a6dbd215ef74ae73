package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeCommandVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Command
	}{
		{"rotate", `{"type":"rotate","data":{"x":1.5,"y":-2,"z":90}}`, Rotate{X: 1.5, Y: -2, Z: 90}},
		{"mousemove", `{"type":"mousemove","data":{"x":0.5,"y":0.25}}`, MouseMove{X: 0.5, Y: 0.25}},
		{"mousedown", `{"type":"mousedown","data":{"x":0,"y":1}}`, MouseDown{X: 0, Y: 1}},
		{"mouseup", `{"type":"mouseup","data":{"x":0.9,"y":0.1}}`, MouseUp{X: 0.9, Y: 0.1}},
		{"keydown numeric", `{"type":"keydown","data":{"key":37}}`, KeyDown{Key: "37"}},
		{"keydown symbolic", `{"type":"keydown","data":{"key":"ArrowLeft"}}`, KeyDown{Key: "ArrowLeft"}},
		{"keyup space", `{"type":"keyup","data":{"key":" "}}`, KeyUp{Key: " "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeCommand(json.RawMessage(tc.raw))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestDecodeCommandMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `not json`},
		{"missing type", `{"data":{"x":1}}`},
		{"empty type", `{"type":"","data":{}}`},
		{"unknown type", `{"type":"teleport","data":{}}`},
		{"bad data shape", `{"type":"mousemove","data":{"x":"oops"}}`},
		{"bad key", `{"type":"keydown","data":{"key":{"nested":true}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeCommand(json.RawMessage(tc.raw)); !errors.Is(err, ErrMalformedCommand) {
				t.Fatalf("want ErrMalformedCommand, got %v", err)
			}
		})
	}
}

// 坐标越出 [0,1] 是合法瞬态，解码不得裁剪或拒收
func TestDecodeCommandDoesNotClamp(t *testing.T) {
	got, err := DecodeCommand(json.RawMessage(`{"type":"mousemove","data":{"x":1.8,"y":-0.3}}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != (MouseMove{X: 1.8, Y: -0.3}) {
		t.Fatalf("coordinates were altered: %#v", got)
	}
}

func TestMarshalCommandRoundTrip(t *testing.T) {
	cmds := []Command{
		Rotate{X: 10, Y: 20, Z: 30},
		MouseMove{X: 0.5, Y: 0.25},
		MouseDown{X: 0.1, Y: 0.2},
		MouseUp{X: 0.3, Y: 0.4},
		KeyDown{Key: "37"},
		KeyUp{Key: "ArrowRight"},
	}
	for _, cmd := range cmds {
		raw, err := MarshalCommand(cmd)
		if err != nil {
			t.Fatalf("marshal %#v: %v", cmd, err)
		}
		back, err := DecodeCommand(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", string(raw), err)
		}
		if back != cmd {
			t.Fatalf("round trip changed command: got %#v, want %#v", back, cmd)
		}
	}
}

// 数字键码编码回 JSON 数字，符号名保持字符串，端到端不变
func TestKeyWireForm(t *testing.T) {
	raw, err := MarshalCommand(KeyDown{Key: "37"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var w struct {
		Data struct {
			Key json.RawMessage `json:"key"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("unmarshal wire form: %v", err)
	}
	if string(w.Data.Key) != "37" {
		t.Fatalf("numeric keycode not preserved as number: %s", string(w.Data.Key))
	}

	raw, err = MarshalCommand(KeyDown{Key: "ArrowLeft"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("unmarshal wire form: %v", err)
	}
	if string(w.Data.Key) != `"ArrowLeft"` {
		t.Fatalf("symbolic key not preserved as string: %s", string(w.Data.Key))
	}
}
