package conn

import (
	"io"
	"net"

	"github.com/nilsc-dev/resp3pipe/resp3"
	"github.com/nilsc-dev/resp3pipe/rrerror"
)

const (
	initialReadBuf = 16 * 1024
	readChunkSize  = 16 * 1024
)

// frameKind distinguishes the three ways a RESP3 node can own children,
// for the stack-based tree walker below.
type frameKind int

const (
	frameAggregate frameKind = iota
	frameStreamedAggregate
	frameStreamedString
)

type frame struct {
	kind      frameKind
	remaining uint64
}

// parseTree decodes exactly one full top-level response tree (the root
// node and every descendant, pre-order) from the head of buf, per spec.md
// §4.1's aggregate/streamed-aggregate/streamed-string rules. It returns a
// soft ErrUnexpectedEOF (as Parse does) when buf does not yet hold the
// whole tree; the caller must re-invoke parseTree from the same offset
// once more bytes are appended — no partial-walk state survives a soft
// error, trading a little re-parsing work for a much simpler reader loop.
func parseTree(buf []byte) (nodes []resp3.Node, consumed int, err error) {
	off := 0
	var stack []frame

	for {
		n, c, perr := resp3.Parse(buf[off:])
		if perr != nil {
			return nil, 0, perr
		}
		off += c
		n.Depth = uint32(len(stack))
		nodes = append(nodes, n)

		if len(stack) > 0 {
			top := &stack[len(stack)-1]
			switch top.kind {
			case frameAggregate:
				top.remaining--
			case frameStreamedAggregate:
				if n.IsStreamTerminator {
					stack = stack[:len(stack)-1]
				}
			case frameStreamedString:
				if n.DataType == resp3.StreamedStringPart && len(n.Data) == 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}

		switch {
		case n.DataType.IsAggregate() && !n.IsNull():
			if n.AggregateSize == resp3.StreamUnbounded {
				stack = append(stack, frame{kind: frameStreamedAggregate})
			} else if n.AggregateSize > 0 {
				stack = append(stack, frame{kind: frameAggregate, remaining: n.AggregateSize})
			}
		case isStreamableString(n.DataType) && n.AggregateSize == resp3.StreamUnbounded:
			stack = append(stack, frame{kind: frameStreamedString})
		}

		for len(stack) > 0 && stack[len(stack)-1].kind == frameAggregate && stack[len(stack)-1].remaining == 0 {
			stack = stack[:len(stack)-1]
		}

		if len(stack) == 0 {
			return nodes, off, nil
		}
	}
}

func isStreamableString(t resp3.Type) bool {
	return t == resp3.BlobString || t == resp3.BlobError || t == resp3.VerbatimString
}

// pushDelivery is one push-rooted tree handed from the reader to whichever
// caller is parked on ReceivePush, together with the bytes it occupied on
// the wire.
type pushDelivery struct {
	nodes    []resp3.Node
	consumed int
}

// readLoop pulls bytes from stream, decodes complete response trees, and
// dispatches each one to the push channel or to the owning request's
// adapter. It returns on any I/O or protocol error, per spec.md §4.4
// Reader Loop. done is closed when the current run attempt's Running phase
// ends, unblocking a push delivery that nobody is receiving.
func (c *Connection) readLoop(stream io.Reader, done <-chan struct{}) error {
	buf := make([]byte, 0, initialReadBuf)
	tmp := make([]byte, readChunkSize)

	for {
		nodes, consumed, err := parseTree(buf)
		if err == nil {
			buf = buf[consumed:]
			if derr := c.dispatchTree(nodes, consumed, done); derr != nil {
				return derr
			}
			continue
		}
		if rrerror.Code(err) != rrerror.ErrUnexpectedEOF {
			return err
		}

		if c.opts.MaxReadSize > 0 && uint64(len(buf)) >= c.opts.MaxReadSize {
			return rrerror.New(rrerror.KindProtocol, rrerror.ErrHeaderlineTooLarge)
		}

		n, rerr := stream.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			c.touchLastData()
		}
		if rerr != nil {
			// deadlineIO re-arms a fresh IOTimeout on every Read so a
			// half-dead socket can't wedge this loop forever; that deadline
			// is far shorter than PingInterval, so a timeout here is the
			// expected shape of "nothing to read right now", not a dead
			// connection. Liveness is idleLoop's job (spec.md §4.5): keep
			// reading; once 2x PingInterval has actually passed with no data
			// idleLoop ends the run, done is closed, and the next timeout
			// here returns.
			if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				select {
				case <-done:
					return nil
				default:
					continue
				}
			}
			return rrerror.NewWrap(rrerror.KindIO, rrerror.ErrIOError, rerr)
		}
	}
}

// dispatchTree routes one fully-decoded response tree: push-rooted trees
// go to the push channel, everything else is walked onto the front-most
// pending record's adapter. A non-push tree with no owning record is a
// fatal protocol desync (spec.md §7 unsolicited_response).
func (c *Connection) dispatchTree(nodes []resp3.Node, consumed int, done <-chan struct{}) error {
	root := nodes[0]
	if root.DataType == resp3.Push {
		return c.deliverPush(nodes, consumed, done)
	}

	rec := c.queue.frontPending()
	if rec == nil {
		return rrerror.New(rrerror.KindProtocol, rrerror.ErrUnsolicitedResponse)
	}

	cmdIndex := uint64(rec.req.Size - rec.commandsRemaining)
	for _, n := range nodes {
		if aerr := rec.adapter.OnNode(cmdIndex, n); aerr != nil {
			rec.complete(decorate(rrerror.NewWrap(rrerror.KindAdapter, rrerror.ErrIncompatibleSize, aerr), c.addr, rec.req.Desc))
		}
	}
	rec.commandsRemaining--
	rec.bytesConsumed += uint64(consumed)
	if rec.commandsRemaining == 0 {
		c.queue.popFront(rec)
		rec.complete(nil)
	}
	return nil
}

// deliverPush hands a push-rooted tree to whichever receiver is currently
// parked on ReceivePush. If nobody is receiving, the send blocks — per
// spec.md §4.4 this is a documented hazard resolved only by the idle
// monitor if the server also stops sending (S6).
func (c *Connection) deliverPush(nodes []resp3.Node, consumed int, done <-chan struct{}) error {
	select {
	case c.pushCh <- pushDelivery{nodes: nodes, consumed: consumed}:
		return nil
	case <-done:
		return nil
	}
}
