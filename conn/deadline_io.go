package conn

import (
	"io"
	"net"
	"time"
)

// deadlineIO wraps a net.Conn so every Read/Write gets a fresh deadline,
// matching redis_conn/deadline_io.go: a half-dead TCP socket can't wedge the
// reader or writer loop forever between ping cycles.
type deadlineIO struct {
	to time.Duration
	c  net.Conn
}

func newDeadlineIO(c net.Conn, to time.Duration) io.ReadWriteCloser {
	if to > 0 {
		return &deadlineIO{c: c, to: to}
	}
	return c
}

func (d *deadlineIO) Write(b []byte) (int, error) {
	d.c.SetWriteDeadline(time.Now().Add(d.to))
	return d.c.Write(b)
}

func (d *deadlineIO) Read(b []byte) (int, error) {
	d.c.SetReadDeadline(time.Now().Add(d.to))
	return d.c.Read(b)
}

func (d *deadlineIO) Close() error {
	return d.c.Close()
}
