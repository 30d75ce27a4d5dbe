package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

type tcpClient struct {
	t *testing.T
	c net.Conn
	r *bufio.Reader
}

func startTCP(t *testing.T, cfg Config) (*Match, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	m := NewMatch(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.ServeTCP(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("ServeTCP: %v", err)
		}
		m.Close()
	})
	return m, ln.Addr().String()
}

func dial(t *testing.T, addr string) *tcpClient {
	t.Helper()
	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return &tcpClient{t: t, c: c, r: bufio.NewReader(c)}
}

func (tc *tcpClient) send(line string) {
	tc.t.Helper()
	if _, err := io.WriteString(tc.c, line+"\n"); err != nil {
		tc.t.Fatalf("write: %v", err)
	}
}

// next 读取下一行，跳过 Bullet 快照
func (tc *tcpClient) next() string {
	tc.t.Helper()
	for {
		_ = tc.c.SetReadDeadline(time.Now().Add(time.Second))
		line, err := tc.r.ReadString('\n')
		if err != nil {
			tc.t.Fatalf("read: %v", err)
		}
		line = strings.TrimSuffix(line, "\n")
		if !strings.HasPrefix(line, "Bullet ") {
			return line
		}
	}
}

func (tc *tcpClient) expect(want string) {
	tc.t.Helper()
	if got := tc.next(); got != want {
		tc.t.Fatalf("got %q, want %q", got, want)
	}
}

// expectClosed 服务端关闭连接后读到 EOF
func (tc *tcpClient) expectClosed() {
	tc.t.Helper()
	_ = tc.c.SetReadDeadline(time.Now().Add(time.Second))
	for {
		_, err := tc.r.ReadString('\n')
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			tc.t.Fatalf("connection still open")
		}
		return
	}
}

func TestTCPMatchScenario(t *testing.T) {
	m, addr := startTCP(t, testConfig())

	a := dial(t, addr)
	a.expect("Client_ID 1")
	b := dial(t, addr)
	b.expect("Client_ID 2")
	a.expect("Player 2 joined")

	a.send("Position 100.0, 200.0")
	b.expect("Client 1: Position 100.0, 200.0")
	if p, _ := m.World().Player(1); p.Pos != (Vec2{X: 100, Y: 200}) {
		t.Fatalf("A stored pos = %+v", p.Pos)
	}
	b.send("Position 100.0, 50.0")
	a.expect("Client 2: Position 100.0, 50.0")

	a.send("Shot 100.0 200.0 600.0 up")
	eventually(t, "projectile spawn", func() bool { return len(m.World().SnapshotProjectiles()) == 1 })

	var hits []Hit
	for i := 0; i < 60 && len(hits) == 0; i++ {
		hits = m.Step(1.0 / 60).Hits
	}
	if len(hits) != 1 || hits[0] != (Hit{Owner: 1, Victim: 2}) {
		t.Fatalf("hits = %+v", hits)
	}
	a.expect("Hit 1 2")
	b.expect("Hit 1 2")
	if p, _ := m.World().Player(1); p.Score != 1 {
		t.Fatalf("A score = %d, want 1", p.Score)
	}

	// 飞出 800 宽世界左侧的子弹被静默丢弃
	a.send("Shot 10 300 600 left")
	eventually(t, "projectile spawn", func() bool { return len(m.World().SnapshotProjectiles()) == 1 })
	res := m.Step(0.1)
	if res.Expired != 1 || len(res.Hits) != 0 || len(res.Survivors) != 0 {
		t.Fatalf("unexpected tick result %+v", res)
	}

	// A 断开：B 收到离开通知，A 的子弹随之清除
	a.send("Shot 700 400 0 up")
	eventually(t, "projectile spawn", func() bool { return len(m.World().SnapshotProjectiles()) == 1 })
	_ = a.c.Close()
	b.expect("Player 1 left")
	eventually(t, "purge", func() bool { return len(m.World().SnapshotProjectiles()) == 0 })
	if got := m.Metrics().Snapshot()["hits"]; got != int64(1) {
		t.Fatalf("hits metric = %v, want 1", got)
	}
}

func TestTCPCarriageReturnStripped(t *testing.T) {
	m, addr := startTCP(t, testConfig())
	a := dial(t, addr)
	a.expect("Client_ID 1")
	b := dial(t, addr)
	b.expect("Client_ID 2")
	a.expect("Player 2 joined")

	if _, err := io.WriteString(a.c, "Position 3, 4\r\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	b.expect("Client 1: Position 3, 4")
	if p, _ := m.World().Player(1); p.Pos != (Vec2{X: 3, Y: 4}) {
		t.Fatalf("pos = %+v", p.Pos)
	}
}

func TestTCPIdleTimeoutIsOptIn(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeoutMs = 50
	m, addr := startTCP(t, cfg)
	a := dial(t, addr)
	a.expect("Client_ID 1")
	a.expectClosed()
	eventually(t, "session removal", func() bool { return m.NumSessions() == 0 })
}

func TestTCPOversizedLineClosesSession(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLineBytes = 32
	m, addr := startTCP(t, cfg)
	a := dial(t, addr)
	a.expect("Client_ID 1")
	a.send(strings.Repeat("x", 100))
	a.expectClosed()
	eventually(t, "session removal", func() bool { return m.NumSessions() == 0 })
}

func TestServeTCPReturnsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	m := NewMatch(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.ServeTCP(ctx, ln) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ServeTCP: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("ServeTCP did not return")
	}
}
