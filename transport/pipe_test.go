package transport

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func startPipe(t *testing.T) (*PipeChannel, *PipeChannel) {
	t.Helper()
	a, b := Pipe()
	t.Cleanup(func() { _ = a.Close() })
	return a, b
}

func TestPipeEmitAndOn(t *testing.T) {
	a, b := startPipe(t)
	got := make(chan string, 1)
	b.On("hello", func(data json.RawMessage, _ ReplyFunc) {
		var s string
		_ = json.Unmarshal(data, &s)
		got <- s
	})
	a.Start()
	b.Start()

	if err := a.Emit("hello", "world", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	select {
	case s := <-got:
		if s != "world" {
			t.Fatalf("got %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

// 同一发送端内先发先到
func TestPipeFIFOPerSender(t *testing.T) {
	a, b := startPipe(t)
	got := make(chan int, 16)
	b.On("n", func(data json.RawMessage, _ ReplyFunc) {
		var n int
		_ = json.Unmarshal(data, &n)
		got <- n
	})
	a.Start()
	b.Start()

	for i := 0; i < 10; i++ {
		if err := a.Emit("n", i, nil); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}
	for i := 0; i < 10; i++ {
		select {
		case n := <-got:
			if n != i {
				t.Fatalf("out of order: got %d, want %d", n, i)
			}
		case <-time.After(time.Second):
			t.Fatalf("message %d never arrived", i)
		}
	}
}

func TestPipeAckRoundTrip(t *testing.T) {
	a, b := startPipe(t)
	b.On("ping", func(data json.RawMessage, reply ReplyFunc) {
		if reply == nil {
			t.Error("reply should be non-nil when ack requested")
			return
		}
		reply("pong")
	})
	a.Start()
	b.Start()

	got := make(chan string, 1)
	err := a.Emit("ping", nil, func(data json.RawMessage) {
		var s string
		_ = json.Unmarshal(data, &s)
		got <- s
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	select {
	case s := <-got:
		if s != "pong" {
			t.Fatalf("ack payload: %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("ack never arrived")
	}
}

// 未请求确认时 reply 为 nil
func TestPipeNoAckRequested(t *testing.T) {
	a, b := startPipe(t)
	done := make(chan struct{}, 1)
	b.On("fire", func(_ json.RawMessage, reply ReplyFunc) {
		if reply != nil {
			t.Error("reply should be nil when no ack requested")
		}
		done <- struct{}{}
	})
	a.Start()
	b.Start()
	_ = a.Emit("fire", nil, nil)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

func TestPipeCloseNotifiesBothEnds(t *testing.T) {
	a, b := Pipe()
	closedA := make(chan struct{})
	closedB := make(chan struct{})
	a.OnClose(func() { close(closedA) })
	b.OnClose(func() { close(closedB) })
	a.Start()
	b.Start()

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, ch := range []chan struct{}{closedA, closedB} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("close callback never fired")
		}
	}
	if err := a.Emit("x", nil, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("emit after close: want ErrClosed, got %v", err)
	}
}
