package conn

import (
	"container/list"
	"sync"

	"github.com/nilsc-dev/resp3pipe/rrerror"
)

// RequestConfig enumerates the per-request policy options of spec.md §3.
type RequestConfig struct {
	// Coalesce: this request may be batched with adjacent ones in one write.
	Coalesce bool
	// CancelIfNotConnected: fail immediately when submitted while disconnected.
	CancelIfNotConnected bool
	// CancelOnConnectionLost: fail the request if the run completes before a
	// response is received.
	CancelOnConnectionLost bool
	// RetryOnConnectionLost: survive a reconnect and be re-sent. Mutually
	// exclusive with CancelOnConnectionLost.
	RetryOnConnectionLost bool
	// HelloWithPriority: insert at the front of the not-yet-written queue
	// prefix (used for the HELLO handshake).
	HelloWithPriority bool
	// CloseOnRunCompletion: remains pending across run termination, not
	// purged by Cancel(OperationRun).
	CloseOnRunCompletion bool
}

// Request is a fully-built RESP3 payload plus the metadata the pipeline
// needs to route and police it. Grounded on aedis/connection.hpp's
// req_info{req, cmds, ...} pairing of wire bytes with an expected reply
// count.
type Request struct {
	Payload []byte
	Size    uint32
	Config  RequestConfig
	// Desc is a short human-readable description used only for error
	// decoration (conn.EKRequest); never interpreted.
	Desc string
}

// requestRecord is the queue element: spec.md §3's RequestRecord, extended
// with the fields a concrete Go implementation needs for signalling
// completion to the Exec caller (wake is a close-once channel rather than
// an abstract Signal).
type requestRecord struct {
	req     Request
	adapter Adapter

	commandsRemaining uint32
	written           bool
	stopped           bool

	wake    chan struct{}
	wakeErr error
	once    sync.Once

	bytesConsumed uint64
}

func newRequestRecord(req Request, adapter Adapter) *requestRecord {
	return &requestRecord{
		req:               req,
		adapter:           adapter,
		commandsRemaining: req.Size,
		wake:              make(chan struct{}),
	}
}

// complete signals the Exec caller; safe to call at most meaningfully once
// (subsequent calls are no-ops), matching the spec's "written transitions
// false->true exactly once" discipline for completion too.
func (r *requestRecord) complete(err error) {
	r.once.Do(func() {
		r.wakeErr = err
		close(r.wake)
	})
}

// pipelineQueue is the FIFO queue of in-flight requestRecords, per spec.md
// §4.4. Grounded on the shard/futures slices of redisconn/conn.go,
// generalized from N independent shards to one ordered queue (matching
// aedis's single std::deque<req_info>).
type pipelineQueue struct {
	mu   sync.Mutex
	list *list.List
	wake chan struct{}
}

func newPipelineQueue() *pipelineQueue {
	return &pipelineQueue{list: list.New(), wake: make(chan struct{}, 1)}
}

// push appends rec to the queue. If priority is set, rec is inserted just
// after the last already-written record and before all unwritten ones
// (spec.md §4.4's hello-priority insertion rule).
func (q *pipelineQueue) push(rec *requestRecord, priority bool) {
	q.mu.Lock()
	if priority {
		e := q.list.Front()
		for e != nil && e.Value.(*requestRecord).written {
			e = e.Next()
		}
		if e == nil {
			q.list.PushBack(rec)
		} else {
			q.list.InsertBefore(rec, e)
		}
	} else {
		q.list.PushBack(rec)
	}
	q.mu.Unlock()
	q.notify()
}

func (q *pipelineQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// drainCoalesced picks unwritten records from the front of the queue,
// marks them written, and returns their concatenated payload. When
// coalesceGlobal is false, or the head record does not permit coalescing,
// exactly one record is taken. Otherwise consecutive unwritten records are
// merged for as long as each one individually permits it, per spec.md
// §4.4 step 2 (grounded on aedis's coalesce_requests()).
func (q *pipelineQueue) drainCoalesced(coalesceGlobal bool) (buf []byte, picked []*requestRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for e := q.list.Front(); e != nil; e = e.Next() {
		rec := e.Value.(*requestRecord)
		if rec.written {
			continue
		}
		if len(picked) > 0 && !(coalesceGlobal && rec.req.Config.Coalesce) {
			break
		}
		buf = append(buf, rec.req.Payload...)
		rec.written = true
		picked = append(picked, rec)
		if !coalesceGlobal || !rec.req.Config.Coalesce {
			break
		}
	}
	return buf, picked
}

// frontPending returns the first written record with Size>0 and still
// awaiting responses — the exact "queue prefix of written records with
// size>0" the reader routes replies against (spec.md §4.4 invariant).
// Push-subscriber placeholders (Size==0) are skipped without being touched.
func (q *pipelineQueue) frontPending() *requestRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.list.Front(); e != nil; e = e.Next() {
		rec := e.Value.(*requestRecord)
		if !rec.written {
			return nil
		}
		if rec.req.Size == 0 {
			continue
		}
		if rec.commandsRemaining > 0 {
			return rec
		}
	}
	return nil
}

// popFront removes rec from wherever it sits in the queue. Callers use it
// for a fully-answered record (commandsRemaining == 0) and for a push-family
// record (Size == 0) right after its write.
func (q *pipelineQueue) popFront(rec *requestRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.list.Front(); e != nil; e = e.Next() {
		if e.Value.(*requestRecord) == rec {
			q.list.Remove(e)
			return
		}
	}
}

// purge removes and fails every record for which keep returns false,
// preserving order for the rest. Used by Cancel(OperationExec) (keep
// always false) and by the run-shutdown path (keep decided per record).
func (q *pipelineQueue) purge(keep func(*requestRecord) bool, fail func(*requestRecord)) int {
	q.mu.Lock()
	var removed []*list.Element
	for e := q.list.Front(); e != nil; e = e.Next() {
		rec := e.Value.(*requestRecord)
		if !keep(rec) {
			removed = append(removed, e)
		}
	}
	for _, e := range removed {
		q.list.Remove(e)
	}
	q.mu.Unlock()
	for _, e := range removed {
		fail(e.Value.(*requestRecord))
	}
	return len(removed)
}

// rewindRetryable resets written:=false on every queued record flagged
// RetryOnConnectionLost, so the writer resends them after a reconnect
// (spec.md §4.6 Shutdown: "retry_on_connection_lost: reset written:=false,
// keep"). CloseOnRunCompletion records (internal PINGs surviving a
// cancel(run)) are rewound the same way: left written across a dead socket
// they would wedge frontPending forever, so "remains pending" is
// implemented here as "resent like a retry" rather than "left in flight".
func (q *pipelineQueue) rewindRetryable() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.list.Front(); e != nil; e = e.Next() {
		rec := e.Value.(*requestRecord)
		if rec.req.Config.RetryOnConnectionLost || rec.req.Config.CloseOnRunCompletion {
			rec.written = false
			rec.commandsRemaining = rec.req.Size
		}
	}
}

// snapshot reports the queue depth and the count of written-but-unanswered
// records, for Connection.Stats().
func (q *pipelineQueue) snapshot() (depth int, inFlight int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.list.Front(); e != nil; e = e.Next() {
		depth++
		if e.Value.(*requestRecord).written {
			inFlight++
		}
	}
	return depth, inFlight
}

func errCanceled() *rrerror.Error {
	return rrerror.New(rrerror.KindConnection, rrerror.ErrOperationCanceled)
}
