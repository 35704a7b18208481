package conn

import (
	"io"

	"github.com/nilsc-dev/resp3pipe/rrerror"
)

// writeLoop coalesces queued requests into stream, respecting the global
// CoalesceRequests option and each record's own Coalesce flag, per
// spec.md §4.4 Writer Loop (grounded on aedis's coalesce_requests() and
// redisconn/conn.go's writer goroutine). done is closed when the current
// run attempt's Running phase ends.
func (c *Connection) writeLoop(stream io.Writer, done <-chan struct{}) error {
	for {
		select {
		case <-c.queue.wake:
		case <-done:
			return nil
		}

		for {
			buf, picked := c.queue.drainCoalesced(c.opts.CoalesceRequests)
			if len(buf) == 0 {
				break
			}
			if _, err := stream.Write(buf); err != nil {
				return rrerror.NewWrap(rrerror.KindIO, rrerror.ErrIOError, err)
			}
			// Push-family requests (Size==0, e.g. SUBSCRIBE) expect no plain
			// reply at all — their acknowledgement, if any, arrives later as
			// an unsolicited push routed to ReceivePush, never to this
			// record's adapter (spec.md §4.2; grounded on original_source's
			// conn_push.cpp, where async_exec of a SUBSCRIBE-only request
			// completes as soon as it's written, well before the push
			// consumer ever sees the confirmation). Complete them here, at
			// write time, since dispatchTree will never pick them as
			// frontPending.
			for _, rec := range picked {
				if rec.req.Size == 0 {
					c.queue.popFront(rec)
					rec.complete(nil)
				}
			}
		}
	}
}
