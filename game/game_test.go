package game

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"testing"
	"time"

	"spacedeck/protocol"
	"spacedeck/transport"
)

func newTestGame(seed int64) (*Game, *MemoryWorld) {
	world := NewMemoryWorld()
	return NewGame(world, rand.New(rand.NewSource(seed)), nil), world
}

// 连续两次 addPlayer 只产生一个玩家、一个实体
func TestAddPlayerIdempotent(t *testing.T) {
	g, world := newTestGame(1)
	p1 := g.AddPlayer("p1")
	p2 := g.AddPlayer("p1")
	if p1 != p2 {
		t.Fatal("second add returned a different player")
	}
	if g.PlayerCount() != 1 || world.LiveCount() != 1 {
		t.Fatalf("players=%d entities=%d, want 1/1", g.PlayerCount(), world.LiveCount())
	}
}

// 移除后重建得到全新实体句柄，不复用旧句柄
func TestRecreateYieldsFreshEntity(t *testing.T) {
	g, world := newTestGame(2)
	first := g.AddPlayer("p1").Entity()
	g.RemovePlayer("p1")
	if world.LiveCount() != 0 {
		t.Fatalf("entity not returned to world: %d", world.LiveCount())
	}
	second := g.AddPlayer("p1").Entity()
	if first == second {
		t.Fatal("entity handle reused across lifecycles")
	}
}

// 移除不存在的玩家是无操作
func TestRemoveAbsentPlayerIsNoop(t *testing.T) {
	g, world := newTestGame(3)
	g.RemovePlayer("ghost")
	g.AddPlayer("p1")
	g.RemovePlayer("ghost")
	if g.PlayerCount() != 1 || world.LiveCount() != 1 {
		t.Fatalf("players=%d entities=%d, want 1/1", g.PlayerCount(), world.LiveCount())
	}
}

// 出生位置落在出生区内，朝向在 [0,2π)，控制状态已挂上实体
func TestSpawnRandomization(t *testing.T) {
	g, _ := newTestGame(4)
	p := g.AddPlayer("p1")
	e := p.Entity().(*MemoryEntity)
	if e.X < -spawnHalfExtent || e.X > spawnHalfExtent || e.Z < -spawnHalfExtent || e.Z > spawnHalfExtent {
		t.Fatalf("spawn outside bounds: (%f, %f)", e.X, e.Z)
	}
	if e.Y != 0 {
		t.Fatalf("spawn off the plane: y=%f", e.Y)
	}
	if e.RotY < 0 || e.RotY >= 6.2832 {
		t.Fatalf("yaw out of range: %f", e.RotY)
	}
	if e.Control == nil {
		t.Fatal("control state not attached to entity")
	}

	// 固定种子下两个玩家不会生成在同一点
	q := g.AddPlayer("p2").Entity().(*MemoryEntity)
	if q.X == e.X && q.Z == e.Z {
		t.Fatal("two spawns collapsed to one point")
	}
}

// 按键命令驱动实体上挂着的控制状态
func TestApplyKeyCommandsUpdatesControlState(t *testing.T) {
	g, _ := newTestGame(5)
	p := g.AddPlayer("p1")
	e := p.Entity().(*MemoryEntity)

	g.HandleCommand("p1", protocol.KeyDown{Key: "37"})
	if !e.Control.RotatingLeft {
		t.Fatal("keydown did not reach the entity control state")
	}
	g.HandleCommand("p1", protocol.KeyUp{Key: "37"})
	if e.Control.RotatingLeft {
		t.Fatal("keyup did not clear the flag")
	}
	if p.ControlState() != (ControlState{}) {
		t.Fatalf("residual control state: %+v", p.ControlState())
	}
}

// rotate 绕过状态机，直接写实体朝向
func TestRotateBypassesStateMachine(t *testing.T) {
	g, _ := newTestGame(6)
	p := g.AddPlayer("p1")
	e := p.Entity().(*MemoryEntity)

	g.HandleCommand("p1", protocol.Rotate{X: 10, Y: 20, Z: 30})
	if e.RotX != 10 || e.RotY != 20 || e.RotZ != 30 {
		t.Fatalf("orientation not applied: (%f,%f,%f)", e.RotX, e.RotY, e.RotZ)
	}
	if p.ControlState() != (ControlState{}) {
		t.Fatal("rotate leaked into the state machine")
	}
}

// 未知玩家的命令静默丢弃
func TestCommandForUnknownPlayerDropped(t *testing.T) {
	g, _ := newTestGame(7)
	g.AddPlayer("p1")
	// 不崩溃、不影响现有玩家即视为通过
	g.HandleCommand("ghost", protocol.KeyDown{Key: "32"})
	if g.Player("p1").ControlState() != (ControlState{}) {
		t.Fatal("command leaked to the wrong player")
	}
}

// 本机玩家走与网络命令相同的路径
func TestLocalPlayerBootstrap(t *testing.T) {
	g, world := newTestGame(8)
	p := g.AddLocalPlayer()
	if p == nil || g.Player(LocalPlayerID) != p {
		t.Fatal("local player not registered")
	}
	if world.LiveCount() != 1 {
		t.Fatalf("entities=%d, want 1", world.LiveCount())
	}
	g.HandleCommand(LocalPlayerID, protocol.KeyDown{Key: "ArrowRight"})
	if !p.ControlState().RotatingRight {
		t.Fatal("local key event not applied")
	}
}

// 通过通道消费注册表事件：playerAdded/command/playerRemoved
func TestGameConsumesChannelEvents(t *testing.T) {
	g, world := newTestGame(9)
	regEnd, gameEnd := transport.Pipe()
	g.Attach(gameEnd)
	regEnd.Start()
	gameEnd.Start()
	defer regEnd.Close()

	emit := func(event string, payload any) {
		if err := regEnd.Emit(event, payload, nil); err != nil {
			t.Fatalf("emit %s: %v", event, err)
		}
	}

	emit(protocol.EventPlayerAdded, protocol.PlayerEvent{PlayerID: "p1"})
	waitCond(t, "player added", func() bool { return g.PlayerCount() == 1 })

	raw, _ := protocol.MarshalCommand(protocol.KeyDown{Key: "32"})
	emit(protocol.EventCommand, protocol.CommandMessage{PlayerID: "p1", Command: raw})
	waitCond(t, "command applied", func() bool {
		s, ok := g.ControlState("p1")
		return ok && s.Accelerating
	})

	// 畸形命令静默丢弃，事件循环不中断
	emit(protocol.EventCommand, json.RawMessage(`{"playerId":"p1","command":{"type":"warp"}}`))
	emit(protocol.EventCommand, json.RawMessage(`garbage`))

	emit(protocol.EventPlayerRemoved, protocol.PlayerEvent{PlayerID: "p1"})
	waitCond(t, "player removed", func() bool { return g.PlayerCount() == 0 && world.LiveCount() == 0 })
}

func TestJoinURL(t *testing.T) {
	g, _ := newTestGame(10)
	regEnd, gameEnd := transport.Pipe()
	regEnd.On(protocol.EventRegisterGame, func(_ json.RawMessage, reply transport.ReplyFunc) {
		reply(protocol.GameCredentials{GameID: "g 1", Key: "k&2"})
	})
	g.Attach(gameEnd)
	regEnd.Start()
	gameEnd.Start()
	defer regEnd.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := g.Register(ctx); err != nil {
		t.Fatalf("register: %v", err)
	}

	u := g.JoinURL("http://example.com")
	if !strings.HasPrefix(u, "http://example.com/controller?") {
		t.Fatalf("unexpected join url: %s", u)
	}
	// 凭据必须经过 URL 转义
	if !strings.Contains(u, "gameId=g+1") || !strings.Contains(u, "key=k%262") {
		t.Fatalf("credentials not escaped: %s", u)
	}
}

func waitCond(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
