package resp3_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilsc-dev/resp3pipe/resp3"
)

func TestRequestBuilder_SingleCommand(t *testing.T) {
	var b resp3.RequestBuilder
	b.Push("GET", "foo")
	assert.Equal(t, "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n", string(b.Payload()))
	assert.Equal(t, uint32(1), b.Size())
}

func TestRequestBuilder_MultipleCommandsCoalesced(t *testing.T) {
	var b resp3.RequestBuilder
	b.Push("PING").Push("GET", "foo")
	want := "*1\r\n$4\r\nPING\r\n" + "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"
	assert.Equal(t, want, string(b.Payload()))
	assert.Equal(t, uint32(2), b.Size())
}

func TestRequestBuilder_PushFamilyExcludedFromSize(t *testing.T) {
	var b resp3.RequestBuilder
	b.Push("SUBSCRIBE", "news")
	assert.Equal(t, uint32(0), b.Size())

	var b2 resp3.RequestBuilder
	b2.Push("UNSUBSCRIBE")
	assert.Equal(t, uint32(0), b2.Size())
}

func TestRequestBuilder_IntAndFloatArgs(t *testing.T) {
	var b resp3.RequestBuilder
	b.Push("SET", "key", 42, 3.5)
	n, consumed, err := resp3.Parse(b.Payload())
	require.NoError(t, err)
	assert.Equal(t, resp3.Array, n.DataType)
	assert.Equal(t, uint64(4), n.AggregateSize)
	assert.Equal(t, len(b.Payload()), consumed+lenOfRest(t, b.Payload()[consumed:], 4))
}

func TestRequestBuilder_NilArgAsEmptyBulk(t *testing.T) {
	var b resp3.RequestBuilder
	b.Push("SET", "key", nil)
	assert.Contains(t, string(b.Payload()), "$0\r\n\r\n")
}

func TestRequestBuilder_BoolArgs(t *testing.T) {
	var b resp3.RequestBuilder
	b.Push("CONFIG", true, false)
	s := string(b.Payload())
	assert.Contains(t, s, "$1\r\n1\r\n")
	assert.Contains(t, s, "$1\r\n0\r\n")
}

func TestRequestBuilder_PairArgs(t *testing.T) {
	var b resp3.RequestBuilder
	b.Push("HSET", "key", [2]interface{}{"field", "value"})
	n, _, err := resp3.Parse(b.Payload())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n.AggregateSize)
}

func TestRequestBuilder_Reset(t *testing.T) {
	var b resp3.RequestBuilder
	b.Push("PING")
	b.Reset()
	assert.Equal(t, uint32(0), b.Size())
	assert.Len(t, b.Payload(), 0)
}

func TestRequestBuilder_UnsupportedTypePanics(t *testing.T) {
	var b resp3.RequestBuilder
	assert.Panics(t, func() {
		b.Push("GET", struct{}{})
	})
}

// lenOfRest walks n additional top-level blob-string frames and returns how
// many bytes they occupy, used to confirm the payload decodes cleanly.
func lenOfRest(t *testing.T, buf []byte, n int) int {
	t.Helper()
	total := 0
	for i := 0; i < n; i++ {
		_, consumed, err := resp3.Parse(buf[total:])
		require.NoError(t, err)
		total += consumed
	}
	return total
}
