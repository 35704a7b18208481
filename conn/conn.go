package conn

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nilsc-dev/resp3pipe/rrerror"
)

const (
	defaultResolveTimeout    = 1 * time.Second
	defaultConnectTimeout    = 1 * time.Second
	defaultPingInterval      = 5 * time.Second
	defaultReconnectInterval = 500 * time.Millisecond
	defaultMaxReadSize       = 64 * 1024 * 1024
	defaultIOTimeout         = 1 * time.Second
)

// Stream is the capability abstraction the connection requires of its
// transport, per spec.md §9: "dynamic dispatch over the stream type ...
// expressed as a capability abstraction {read(buf), write(buf), close()}".
// Any bidirectional byte stream (plain TCP, TLS, a Unix socket, a test
// double) satisfies it.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// DialFunc opens the Stream a Connection runs over. The default dials TCP
// with Opts.IOTimeout deadlines on every read/write (conn.deadlineIO).
type DialFunc func(ctx context.Context, addr string) (Stream, error)

// Opts is the public configuration of a Connection, per spec.md §6, plus
// the ambient fields (Logger, Handle, Dial) every long-lived connection in
// the teacher's style carries.
type Opts struct {
	Host     string
	Port     string
	Username string
	Password string

	ResolveTimeout    time.Duration
	ConnectTimeout    time.Duration
	PingInterval      time.Duration
	ReconnectInterval time.Duration
	MaxReadSize       uint64

	CoalesceRequests bool
	EnableEvents     bool
	EnableReconnect  bool

	// IOTimeout bounds every read/write once connected so a half-dead socket
	// can't wedge the reader/writer forever; a read timeout alone does not
	// abort the run (see readLoop) since the connection is expected to sit
	// idle between replies for up to 2xPingInterval. 0 selects the 1s
	// default; a negative value disables it.
	IOTimeout time.Duration
	// Dial overrides how the transport is established; nil dials TCP.
	Dial DialFunc
	// Logger receives lifecycle notifications; nil uses a log.Printf default.
	Logger Logger
	// Handle is an opaque value returned by Connection.Handle(), useful for
	// correlating a *Connection with caller-side bookkeeping.
	Handle interface{}
}

func (o *Opts) setDefaults() {
	if o.ResolveTimeout == 0 {
		o.ResolveTimeout = defaultResolveTimeout
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.PingInterval == 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.ReconnectInterval == 0 {
		o.ReconnectInterval = defaultReconnectInterval
	}
	if o.MaxReadSize == 0 {
		o.MaxReadSize = defaultMaxReadSize
	}
	if o.IOTimeout == 0 {
		o.IOTimeout = defaultIOTimeout
	}
	if o.Logger == nil {
		o.Logger = defaultLogger{}
	}
	if o.Port == "" {
		o.Port = "6379"
	}
}

// State is a Connection's position in the lifecycle of spec.md §4.6.
type State int32

const (
	StateDisconnected State = iota
	StateResolving
	StateConnecting
	StateGreeting
	StateRunning
	StateReconnecting
	StateTerminated
)

var stateName = [...]string{
	"disconnected", "resolving", "connecting", "greeting",
	"running", "reconnecting", "terminated",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateName) {
		return stateName[s]
	}
	return "unknown"
}

// Event is one of the three lifecycle notifications Run() emits (spec.md
// §4.6 and §6). The Aedis source this spec was distilled from declares a
// fourth, stale `event::push` arm in its to_string switch despite `event`
// never having a push member; that is not carried forward here.
type Event int

const (
	EventResolve Event = iota
	EventConnect
	EventHello
)

func (e Event) String() string {
	switch e {
	case EventResolve:
		return "resolve"
	case EventConnect:
		return "connect"
	case EventHello:
		return "hello"
	default:
		return "unknown"
	}
}

// Operation identifies what Cancel targets, per spec.md §4.6/§6.
type Operation int

const (
	OperationExec Operation = iota
	OperationRun
	OperationReceiveEvent
	OperationReceivePush
)

// ConnStats is ambient observability the distilled spec never names but
// every long-lived pipeline in the teacher's style carries, supplementing
// redisconn/eachshard.go's enumeration with single-connection introspection.
type ConnStats struct {
	State       State
	QueueDepth  int
	InFlight    int
	LastDataAge time.Duration
}

// Connection is the long-lived multiplexed RESP3 connection of spec.md §1.
type Connection struct {
	ctx    context.Context
	cancel context.CancelFunc

	addr string
	opts Opts

	queue *pipelineQueue

	state    int32
	lastData int64

	pushCh  chan pushDelivery
	eventCh chan Event

	evMu     sync.Mutex
	evCancel chan struct{}

	pushRecvMu sync.Mutex
	pushCancel chan struct{}

	streamMu sync.Mutex
	stream   Stream

	stopOnce sync.Once
	closed   chan struct{}
}

// New constructs a Connection bound to opts. It does not dial: call Run in
// its own goroutine to drive resolve/connect/hello/running/reconnect, and
// call Exec/ReceivePush/ReceiveEvent concurrently with it.
func New(ctx context.Context, opts Opts) (*Connection, error) {
	if ctx == nil {
		return nil, rrerror.New(rrerror.KindOpts, rrerror.ErrContextIsNil)
	}
	if opts.Host == "" {
		return nil, rrerror.New(rrerror.KindOpts, rrerror.ErrNoAddressProvided)
	}
	opts.setDefaults()

	c := &Connection{
		addr:       net.JoinHostPort(opts.Host, opts.Port),
		opts:       opts,
		queue:      newPipelineQueue(),
		pushCh:     make(chan pushDelivery),
		eventCh:    make(chan Event, 4),
		evCancel:   make(chan struct{}),
		pushCancel: make(chan struct{}),
		closed:     make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.lastData = time.Now().UnixNano()
	return c, nil
}

// Addr is the host:port this connection dials.
func (c *Connection) Addr() string { return c.addr }

// Handle returns the user-supplied Opts.Handle, useful for correlating a
// *Connection with caller-side bookkeeping.
func (c *Connection) Handle() interface{} { return c.opts.Handle }

// State reports the connection's current lifecycle position.
func (c *Connection) State() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *Connection) setState(s State) {
	atomic.StoreInt32(&c.state, int32(s))
}

func (c *Connection) touchLastData() {
	atomic.StoreInt64(&c.lastData, time.Now().UnixNano())
}

func (c *Connection) lastDataTime() time.Time {
	return time.Unix(0, atomic.LoadInt64(&c.lastData))
}

func (c *Connection) report(event LogKind, v ...interface{}) {
	c.opts.Logger.Report(event, c, v...)
}

// Stats is a supplemented introspection op (see DESIGN.md): a single
// connection's analogue of redisconn/eachshard.go's enumeration.
func (c *Connection) Stats() ConnStats {
	depth, inflight := c.queue.snapshot()
	return ConnStats{
		State:       c.State(),
		QueueDepth:  depth,
		InFlight:    inflight,
		LastDataAge: time.Since(c.lastDataTime()),
	}
}

// submit builds and enqueues a requestRecord, waking the writer.
func (c *Connection) submit(req Request, adapter Adapter, priority bool) *requestRecord {
	rec := newRequestRecord(req, adapter)
	c.queue.push(rec, priority)
	return rec
}

// Exec enqueues req and blocks until every expected response has been
// delivered to adapter, per spec.md §6 exec(). It returns the number of
// wire bytes the responses occupied.
func (c *Connection) Exec(req Request, adapter Adapter) (uint64, error) {
	want := adapter.SupportedResponseSize()
	if want != 0 && want != uint64(req.Size) {
		return 0, decorate(rrerror.New(rrerror.KindAdapter, rrerror.ErrIncompatibleSize).
			With("want", want).With("got", req.Size), c.addr, req.Desc)
	}
	if req.Config.CancelIfNotConnected && c.State() != StateRunning {
		return 0, decorate(rrerror.New(rrerror.KindConnection, rrerror.ErrNotConnected), c.addr, req.Desc)
	}

	rec := c.submit(req, adapter, req.Config.HelloWithPriority)
	select {
	case <-rec.wake:
		return rec.bytesConsumed, rec.wakeErr
	case <-c.closed:
		return 0, decorate(errCanceled(), c.addr, req.Desc)
	}
}

// ReceivePush waits for exactly one push-rooted response tree and delivers
// it to adapter, returning the bytes it occupied. Per spec.md §6
// receive_push().
func (c *Connection) ReceivePush(adapter Adapter) (uint64, error) {
	c.pushRecvMu.Lock()
	cancelCh := c.pushCancel
	c.pushRecvMu.Unlock()

	select {
	case d := <-c.pushCh:
		for _, n := range d.nodes {
			if aerr := adapter.OnNode(PushIndex, n); aerr != nil {
				return 0, decorate(rrerror.NewWrap(rrerror.KindAdapter, rrerror.ErrIncompatibleSize, aerr), c.addr, "")
			}
		}
		return uint64(d.consumed), nil
	case <-cancelCh:
		return 0, decorate(errCanceled(), c.addr, "")
	case <-c.closed:
		return 0, decorate(errCanceled(), c.addr, "")
	}
}

// ReceiveEvent waits for the next lifecycle event (resolve, connect, or
// hello), per spec.md §6 receive_event(). Requires Opts.EnableEvents.
func (c *Connection) ReceiveEvent() (Event, error) {
	if !c.opts.EnableEvents {
		return 0, decorate(rrerror.New(rrerror.KindOpts, rrerror.ErrNotConnected).
			With("reason", "events disabled"), c.addr, "")
	}
	c.evMu.Lock()
	cancelCh := c.evCancel
	c.evMu.Unlock()

	select {
	case ev := <-c.eventCh:
		return ev, nil
	case <-cancelCh:
		return 0, decorate(errCanceled(), c.addr, "")
	case <-c.closed:
		return 0, decorate(errCanceled(), c.addr, "")
	}
}

func (c *Connection) emitEvent(ev Event) {
	if !c.opts.EnableEvents {
		return
	}
	select {
	case c.eventCh <- ev:
	default:
	}
}

// Cancel targets op per spec.md §4.6/§6 and returns the count of records
// or waiters it affected.
func (c *Connection) Cancel(op Operation) uint32 {
	switch op {
	case OperationExec:
		return uint32(c.queue.purge(
			func(*requestRecord) bool { return false },
			func(rec *requestRecord) { rec.complete(decorate(errCanceled(), c.addr, rec.req.Desc)) },
		))
	case OperationRun:
		return c.cancelRun()
	case OperationReceivePush:
		return c.cancelReceivePush()
	case OperationReceiveEvent:
		return c.cancelReceiveEvent()
	default:
		return 0
	}
}

// cancelRun closes the socket and stops the reconnect loop for good.
// Idempotent: a second call returns 0 (testable property 6).
func (c *Connection) cancelRun() uint32 {
	did := uint32(0)
	c.stopOnce.Do(func() {
		did = 1
		c.cancel()
		c.streamMu.Lock()
		s := c.stream
		c.streamMu.Unlock()
		if s != nil {
			s.Close()
		}
	})
	return did
}

func (c *Connection) cancelReceivePush() uint32 {
	c.pushRecvMu.Lock()
	defer c.pushRecvMu.Unlock()
	close(c.pushCancel)
	c.pushCancel = make(chan struct{})
	return 1
}

func (c *Connection) cancelReceiveEvent() uint32 {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	close(c.evCancel)
	c.evCancel = make(chan struct{})
	return 1
}

func (c *Connection) setStream(s Stream) {
	c.streamMu.Lock()
	c.stream = s
	c.streamMu.Unlock()
}
