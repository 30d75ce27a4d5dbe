package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"
)

// tcpConn 以 '\n' 分行的 TCP 连接
type tcpConn struct {
	c  net.Conn
	sc *bufio.Scanner
	w  *bufio.Writer

	writeTimeout time.Duration
	idleTimeout  time.Duration
}

func newTCPConn(c net.Conn, cfg Config) *tcpConn {
	sc := bufio.NewScanner(c)
	sc.Buffer(make([]byte, 0, min(4096, cfg.MaxLineBytes)), cfg.MaxLineBytes)
	return &tcpConn{
		c:            c,
		sc:           sc,
		w:            bufio.NewWriter(c),
		writeTimeout: cfg.writeTimeout(),
		idleTimeout:  cfg.idleTimeout(),
	}
}

func (t *tcpConn) ReadLine() (string, error) {
	if t.idleTimeout > 0 {
		_ = t.c.SetReadDeadline(time.Now().Add(t.idleTimeout))
	}
	if !t.sc.Scan() {
		if err := t.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSuffix(t.sc.Text(), "\r"), nil
}

func (t *tcpConn) WriteLine(line string) error {
	if t.writeTimeout > 0 {
		_ = t.c.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	if _, err := t.w.WriteString(line); err != nil {
		return err
	}
	return t.w.WriteByte('\n')
}

func (t *tcpConn) Flush() error { return t.w.Flush() }

func (t *tcpConn) Close() error { return t.c.Close() }

func (t *tcpConn) RemoteAddr() string { return t.c.RemoteAddr().String() }

// ServeTCP 在 ln 上接受连接，每条连接一个会话协程；ctx 取消时关闭监听并返回
func (m *Match) ServeTCP(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var backoff time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// 临时错误：退避后重试
				if backoff == 0 {
					backoff = 5 * time.Millisecond
				} else {
					backoff = min(backoff*2, time.Second)
				}
				Log.Warnf("accept error: %v; retrying in %v", err, backoff)
				time.Sleep(backoff)
				continue
			}
			return err
		}
		backoff = 0
		go m.Serve(newTCPConn(c, m.cfg))
	}
}
