package conn

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/nilsc-dev/resp3pipe/resp3"
	"github.com/nilsc-dev/resp3pipe/rrerror"
)

// Run drives the connection lifecycle of spec.md §4.6: resolve, connect,
// HELLO, then fan out the reader/writer/ping/idle tasks until one of them
// fails, shut down, and either reconnect (if Opts.EnableReconnect) or
// terminate. It blocks until the connection is terminated for good, and
// must be run in its own goroutine (grounded on redisconn/conn.go's
// createConnection/control/reconnect trio, generalized from "reconnect
// forever with backoff" into the spec's explicit state machine).
func (c *Connection) Run() error {
	defer close(c.closed)

	for {
		if err := c.ctx.Err(); err != nil {
			c.setState(StateTerminated)
			return c.shutdownErr(err)
		}

		c.setState(StateResolving)
		c.report(LogResolving)
		raddr, err := c.resolve(c.ctx)
		if err != nil {
			return c.terminal(err)
		}
		c.report(LogResolved, raddr)
		c.emitEvent(EventResolve)

		c.setState(StateConnecting)
		c.report(LogConnecting)
		stream, err := c.connect(c.ctx, raddr)
		if err != nil {
			return c.terminal(err)
		}
		c.report(LogConnected, raddr)
		c.emitEvent(EventConnect)

		c.setState(StateGreeting)
		c.report(LogGreeting)
		if err := c.greet(stream); err != nil {
			stream.Close()
			c.report(LogHelloFailed, err)
			return c.terminal(err)
		}
		c.report(LogHello)
		c.emitEvent(EventHello)

		c.setStream(stream)
		c.setState(StateRunning)
		c.report(LogRunning)
		runErr := c.runOne(stream)
		c.setStream(nil)
		stream.Close()

		c.shutdown(runErr)

		if c.ctx.Err() != nil || !c.opts.EnableReconnect {
			c.setState(StateTerminated)
			c.report(LogTerminated, runErr)
			return c.shutdownErr(runErr)
		}

		c.setState(StateReconnecting)
		c.report(LogReconnecting, c.opts.ReconnectInterval)
		select {
		case <-time.After(c.opts.ReconnectInterval):
		case <-c.ctx.Done():
			c.setState(StateTerminated)
			c.report(LogTerminated, c.ctx.Err())
			return c.shutdownErr(c.ctx.Err())
		}
	}
}

// terminal fails the run for good: every queued record is purged (their
// CloseOnRunCompletion/retry flags don't matter once there will be no
// further reconnect attempt), and the connection is marked Terminated.
func (c *Connection) terminal(err error) error {
	c.setState(StateTerminated)
	c.report(LogTerminated, err)
	c.queue.purge(func(*requestRecord) bool { return false }, func(rec *requestRecord) {
		rec.complete(decorate(asRRErr(err), c.addr, rec.req.Desc))
	})
	return c.shutdownErr(err)
}

// shutdownErr normalizes a nil run error (context canceled via cancel(run))
// into operation_canceled, per spec.md §4.6 Shutdown / §8 S1, S4.
func (c *Connection) shutdownErr(err error) error {
	if err == nil || err == context.Canceled {
		return decorate(errCanceled(), c.addr, "")
	}
	return decorate(asRRErr(err), c.addr, "")
}

func asRRErr(err error) *rrerror.Error {
	if e, ok := err.(*rrerror.Error); ok {
		return e
	}
	if err == nil {
		return errCanceled()
	}
	return rrerror.NewWrap(rrerror.KindIO, rrerror.ErrIOError, err)
}

// resolve validates addr is resolvable within Opts.ResolveTimeout. It does
// not itself dial; Connect is a separate suspension point per spec.md §5.
func (c *Connection) resolve(ctx context.Context) (string, error) {
	rctx, cancel := context.WithTimeout(ctx, c.opts.ResolveTimeout)
	defer cancel()

	host, port, err := net.SplitHostPort(c.addr)
	if err != nil {
		return "", rrerror.NewWrap(rrerror.KindResolve, rrerror.ErrResolveTimeout, err)
	}
	ips, err := net.DefaultResolver.LookupIPAddr(rctx, host)
	if err != nil {
		if rctx.Err() != nil {
			return "", rrerror.NewWrap(rrerror.KindResolve, rrerror.ErrResolveTimeout, rctx.Err())
		}
		return "", rrerror.NewWrap(rrerror.KindResolve, rrerror.ErrResolveTimeout, err)
	}
	if len(ips) == 0 {
		return "", rrerror.New(rrerror.KindResolve, rrerror.ErrResolveTimeout).With("host", host)
	}
	return net.JoinHostPort(ips[0].String(), port), nil
}

// connect opens the Stream, defaulting to a TCP dial wrapped in a
// read/write deadline, per redis_conn/deadline_io.go.
func (c *Connection) connect(ctx context.Context, raddr string) (Stream, error) {
	cctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	dial := c.opts.Dial
	if dial == nil {
		dial = c.defaultDial
	}
	stream, err := dial(cctx, raddr)
	if err != nil {
		if cctx.Err() != nil {
			return nil, rrerror.NewWrap(rrerror.KindConnect, rrerror.ErrConnectTimeout, cctx.Err())
		}
		return nil, rrerror.NewWrap(rrerror.KindConnect, rrerror.ErrConnectTimeout, err)
	}
	return stream, nil
}

// defaultDial dials plain TCP and wraps the result in deadlineIO so every
// read/write carries a fresh Opts.IOTimeout deadline, per
// redis_conn/deadline_io.go.
func (c *Connection) defaultDial(ctx context.Context, raddr string) (Stream, error) {
	d := net.Dialer{}
	nc, err := d.DialContext(ctx, "tcp", raddr)
	if err != nil {
		return nil, err
	}
	return newDeadlineIO(nc, c.opts.IOTimeout), nil
}

const greetReadChunk = 4 * 1024

// greet performs the mandatory HELLO 3 handshake (spec.md §6: "The client
// MUST issue HELLO 3 ... before any other user command"), optionally with
// AUTH. It talks to the socket directly rather than through the pipeline
// queue/writer/reader, the way redisconn/conn.go's dial() writes
// AUTH+PING+SELECT and reads their replies synchronously before handing the
// now-greeted net.Conn to the writer/reader goroutine pair: nothing else
// can have been written to this brand new socket yet (the general
// writeLoop only starts once greet returns), so there is no risk of a
// reply for some other command arriving mixed in with the HELLO reply.
func (c *Connection) greet(stream Stream) error {
	var b resp3.RequestBuilder
	switch {
	case c.opts.Username != "":
		b.Push("HELLO", "3", "AUTH", c.opts.Username, c.opts.Password)
	case c.opts.Password != "":
		b.Push("HELLO", "3", "AUTH", "default", c.opts.Password)
	default:
		b.Push("HELLO", "3")
	}

	if _, err := stream.Write(b.Payload()); err != nil {
		return rrerror.NewWrap(rrerror.KindIO, rrerror.ErrIOError, err)
	}

	buf := make([]byte, 0, greetReadChunk)
	tmp := make([]byte, greetReadChunk)
	for {
		nodes, _, err := parseTree(buf)
		if err == nil {
			c.touchLastData()
			root := nodes[0]
			if root.DataType == resp3.SimpleError || root.DataType == resp3.BlobError {
				msg := string(root.Data)
				if isAuthError(msg) {
					return rrerror.NewMsg(rrerror.KindConnect, rrerror.ErrAuth, msg)
				}
				return rrerror.NewMsg(rrerror.KindConnect, rrerror.ErrHelloFailed, msg)
			}
			return nil
		}
		if rrerror.Code(err) != rrerror.ErrUnexpectedEOF {
			return err
		}

		n, rerr := stream.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if rerr != nil {
			return rrerror.NewWrap(rrerror.KindIO, rrerror.ErrIOError, rerr)
		}
	}
}

func isAuthError(msg string) bool {
	for _, needle := range []string{"WRONGPASS", "NOAUTH", "NOPERM", "AUTH"} {
		if len(msg) >= len(needle) && msg[:len(needle)] == needle {
			return true
		}
	}
	return false
}

// runOne fans the reader, writer, ping, and idle tasks out over stream and
// waits for the first one to stop, per spec.md §4.6 Running. All four share
// a single done channel so a failure in any of them unblocks the rest
// (including a push delivery nobody is receiving, per the reader's hazard
// note in spec.md §4.4).
func (c *Connection) runOne(stream Stream) error {
	done := make(chan struct{})
	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { close(done) }) }

	errCh := make(chan error, 4)
	var wg sync.WaitGroup

	run := func(f func(<-chan struct{}) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- f(done)
			stop()
		}()
	}

	run(func(d <-chan struct{}) error { return c.readLoop(stream, d) })
	run(func(d <-chan struct{}) error { return c.writeLoop(stream, d) })
	run(c.pingLoop)
	run(c.idleLoop)

	go func() {
		select {
		case <-c.ctx.Done():
			stop()
		case <-done:
		}
	}()

	wg.Wait()
	close(errCh)

	// Every goroutine that stops for a reason other than "someone else
	// asked me to" contributes its error. They are collected with multierr,
	// but only the first one is returned (and so reported and surfaced by
	// Run), keeping its *rrerror.Error code intact even when, say, the
	// writer and the idle monitor both observed the same dead socket.
	var combined error
	for err := range errCh {
		combined = multierr.Append(combined, err)
	}
	errs := multierr.Errors(combined)
	if len(errs) == 0 {
		if c.ctx.Err() != nil {
			return c.ctx.Err()
		}
		return nil
	}
	return errs[0]
}

// shutdown implements spec.md §4.6's Shutdown box: CancelOnConnectionLost
// records fail now, RetryOnConnectionLost and CloseOnRunCompletion records
// are kept and rewound for the next connection attempt, and everything else
// fails with operation_canceled.
// A push-subscriber placeholder (Size==0) normally never reaches here at
// all: writeLoop completes and pops it the moment its write succeeds. The
// Size==0 && written branch below only catches the one case that escapes
// that path — drainCoalesced marks a record written before stream.Write
// runs, so a placeholder coalesced alongside a record whose write then
// failed is left behind written but never completed; drop it here rather
// than resending a SUBSCRIBE a second time on reconnect.
func (c *Connection) shutdown(runErr error) {
	_ = runErr
	c.queue.purge(
		func(rec *requestRecord) bool {
			if rec.req.Config.CancelOnConnectionLost {
				return false
			}
			if rec.req.Size == 0 && rec.written {
				return false
			}
			return rec.req.Config.RetryOnConnectionLost || rec.req.Config.CloseOnRunCompletion
		},
		func(rec *requestRecord) {
			rec.complete(decorate(errCanceled(), c.addr, rec.req.Desc))
		},
	)
	c.queue.rewindRetryable()
}
