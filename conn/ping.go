package conn

import (
	"time"

	"github.com/nilsc-dev/resp3pipe/resp3"
	"github.com/nilsc-dev/resp3pipe/rrerror"
)

// pingAdapter discards every node of the internal keepalive PING; it never
// surfaces an error since a malformed PONG should not look like an adapter
// rejection, only an idle timeout or I/O error should end the run.
type pingAdapter struct{}

func (pingAdapter) OnNode(uint64, resp3.Node) error { return nil }
func (pingAdapter) SupportedResponseSize() uint64   { return 0 }

// pingLoop submits an internal PING every PingInterval, marked
// CloseOnRunCompletion so it survives run teardown, per spec.md §4.5.
func (c *Connection) pingLoop(done <-chan struct{}) error {
	if c.opts.PingInterval <= 0 {
		<-done
		return nil
	}
	t := time.NewTicker(c.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return nil
		case <-t.C:
			var b resp3.RequestBuilder
			b.Push("PING")
			req := Request{Payload: b.Payload(), Size: b.Size(), Desc: "PING", Config: RequestConfig{
				Coalesce:             true,
				CloseOnRunCompletion: true,
			}}
			c.submit(req, pingAdapter{}, false)
		}
	}
}

// idleLoop aborts the run with ErrIdleTimeout if last_data hasn't advanced
// for 2×PingInterval, per spec.md §4.5 and testable-property 4.
func (c *Connection) idleLoop(done <-chan struct{}) error {
	if c.opts.PingInterval <= 0 {
		<-done
		return nil
	}
	idleAfter := 2 * c.opts.PingInterval
	t := time.NewTicker(c.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return nil
		case <-t.C:
			if time.Since(c.lastDataTime()) > idleAfter {
				return rrerror.New(rrerror.KindIO, rrerror.ErrIdleTimeout).With("after", idleAfter)
			}
		}
	}
}
