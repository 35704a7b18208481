package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilsc-dev/resp3pipe/resp3"
)

func TestQueue_FIFOOrder(t *testing.T) {
	q := newPipelineQueue()
	a := newRequestRecord(Request{Payload: []byte("a"), Size: 1}, noopAdapter{})
	b := newRequestRecord(Request{Payload: []byte("b"), Size: 1}, noopAdapter{})
	q.push(a, false)
	q.push(b, false)

	buf, picked := q.drainCoalesced(false)
	require.Len(t, picked, 1)
	assert.Equal(t, a, picked[0])
	assert.Equal(t, []byte("a"), buf)

	buf, picked = q.drainCoalesced(false)
	require.Len(t, picked, 1)
	assert.Equal(t, b, picked[0])
	assert.Equal(t, []byte("b"), buf)
}

func TestQueue_HelloPriorityInsertsBeforeUnwritten(t *testing.T) {
	q := newPipelineQueue()
	r1 := newRequestRecord(Request{Payload: []byte("r1"), Size: 1}, noopAdapter{})
	r2 := newRequestRecord(Request{Payload: []byte("r2"), Size: 1}, noopAdapter{})
	q.push(r1, false)
	q.push(r2, false)

	// r1 gets written (simulating it already went out on the wire)...
	buf, picked := q.drainCoalesced(false)
	require.Equal(t, []byte("r1"), buf)
	require.Len(t, picked, 1)

	// ...then a hello-priority record is submitted: it must land after r1
	// (already written) but before r2 (still unwritten), per spec.md §4.4
	// and scenario S2.
	r3 := newRequestRecord(Request{Payload: []byte("r3"), Size: 1}, noopAdapter{})
	q.push(r3, true)

	buf, picked = q.drainCoalesced(false)
	require.Len(t, picked, 1)
	assert.Equal(t, r3, picked[0], "hello-priority record must be written next, before r2")
	assert.Equal(t, []byte("r3"), buf)

	buf, picked = q.drainCoalesced(false)
	require.Len(t, picked, 1)
	assert.Equal(t, r2, picked[0])
	assert.Equal(t, []byte("r2"), buf)
}

func TestQueue_CoalesceMergesConsecutiveUnwritten(t *testing.T) {
	q := newPipelineQueue()
	a := newRequestRecord(Request{Payload: []byte("a"), Size: 1, Config: RequestConfig{Coalesce: true}}, noopAdapter{})
	b := newRequestRecord(Request{Payload: []byte("b"), Size: 1, Config: RequestConfig{Coalesce: true}}, noopAdapter{})
	c := newRequestRecord(Request{Payload: []byte("c"), Size: 1, Config: RequestConfig{Coalesce: false}}, noopAdapter{})
	q.push(a, false)
	q.push(b, false)
	q.push(c, false)

	buf, picked := q.drainCoalesced(true)
	require.Len(t, picked, 2)
	assert.Equal(t, []byte("ab"), buf)
	assert.True(t, a.written)
	assert.True(t, b.written)
	assert.False(t, c.written)

	buf, picked = q.drainCoalesced(true)
	require.Len(t, picked, 1)
	assert.Equal(t, []byte("c"), buf)
}

func TestQueue_CoalesceDisabledTakesOnlyHead(t *testing.T) {
	q := newPipelineQueue()
	a := newRequestRecord(Request{Payload: []byte("a"), Size: 1, Config: RequestConfig{Coalesce: true}}, noopAdapter{})
	b := newRequestRecord(Request{Payload: []byte("b"), Size: 1, Config: RequestConfig{Coalesce: true}}, noopAdapter{})
	q.push(a, false)
	q.push(b, false)

	_, picked := q.drainCoalesced(false)
	require.Len(t, picked, 1)
	assert.Equal(t, a, picked[0])
}

func TestQueue_FrontPendingSkipsPushPlaceholders(t *testing.T) {
	q := newPipelineQueue()
	sub := newRequestRecord(Request{Payload: []byte("s"), Size: 0}, noopAdapter{})
	cmd := newRequestRecord(Request{Payload: []byte("c"), Size: 1}, noopAdapter{})
	q.push(sub, false)
	q.push(cmd, false)

	_, picked := q.drainCoalesced(false)
	require.Len(t, picked, 1)
	_, picked = q.drainCoalesced(false)
	require.Len(t, picked, 1)

	front := q.frontPending()
	require.NotNil(t, front)
	assert.Equal(t, cmd, front)
}

func TestQueue_PurgeRemovesAndFails(t *testing.T) {
	q := newPipelineQueue()
	a := newRequestRecord(Request{Payload: []byte("a"), Size: 1}, noopAdapter{})
	b := newRequestRecord(Request{Payload: []byte("b"), Size: 1}, noopAdapter{})
	q.push(a, false)
	q.push(b, false)

	var failed []*requestRecord
	n := q.purge(func(*requestRecord) bool { return false }, func(r *requestRecord) {
		failed = append(failed, r)
	})
	assert.Equal(t, 2, n)
	assert.Len(t, failed, 2)
	assert.Nil(t, q.frontPending())

	depth, inFlight := q.snapshot()
	assert.Equal(t, 0, depth)
	assert.Equal(t, 0, inFlight)
}

func TestQueue_RewindRetryableResetsWritten(t *testing.T) {
	q := newPipelineQueue()
	retry := newRequestRecord(Request{Payload: []byte("r"), Size: 1, Config: RequestConfig{Coalesce: true, RetryOnConnectionLost: true}}, noopAdapter{})
	plain := newRequestRecord(Request{Payload: []byte("p"), Size: 1, Config: RequestConfig{Coalesce: true}}, noopAdapter{})
	q.push(retry, false)
	q.push(plain, false)

	_, picked := q.drainCoalesced(true)
	require.Len(t, picked, 2)
	require.True(t, retry.written)
	require.True(t, plain.written)

	q.rewindRetryable()
	assert.False(t, retry.written)
	assert.True(t, plain.written)
	assert.Equal(t, retry.req.Size, retry.commandsRemaining)
}

type noopAdapter struct{}

func (noopAdapter) OnNode(uint64, resp3.Node) error { return nil }
func (noopAdapter) SupportedResponseSize() uint64   { return 0 }
