package resp3_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilsc-dev/resp3pipe/resp3"
	"github.com/nilsc-dev/resp3pipe/rrerror"
)

func parseAll(t *testing.T, buf []byte, want int) []resp3.Node {
	t.Helper()
	var nodes []resp3.Node
	off := 0
	for len(nodes) < want {
		n, consumed, err := resp3.Parse(buf[off:])
		require.NoError(t, err)
		require.Greater(t, consumed, 0)
		off += consumed
		nodes = append(nodes, n)
	}
	return nodes
}

func TestParse_SimpleString(t *testing.T) {
	n, consumed, err := resp3.Parse([]byte("+PONG\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, consumed)
	assert.Equal(t, resp3.SimpleString, n.DataType)
	assert.Equal(t, "PONG", string(n.Data))
}

func TestParse_BlobString(t *testing.T) {
	n, consumed, err := resp3.Parse([]byte("$5\r\nhello\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 11, consumed)
	assert.Equal(t, resp3.BlobString, n.DataType)
	assert.Equal(t, "hello", string(n.Data))
}

func TestParse_BlobStringBinarySafe(t *testing.T) {
	payload := []byte{0, 1, 2, '\r', '\n', 3}
	buf := append([]byte("$6\r\n"), payload...)
	buf = append(buf, '\r', '\n')
	n, consumed, err := resp3.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, payload, n.Data)
}

func TestParse_NullBlobString(t *testing.T) {
	n, _, err := resp3.Parse([]byte("$-1\r\n"))
	require.NoError(t, err)
	assert.Equal(t, resp3.Null, n.DataType)
}

func TestParse_NullArray(t *testing.T) {
	n, _, err := resp3.Parse([]byte("*-1\r\n"))
	require.NoError(t, err)
	assert.Equal(t, resp3.Null, n.DataType)
}

func TestParse_Array(t *testing.T) {
	n, consumed, err := resp3.Parse([]byte("*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"))
	require.NoError(t, err)
	assert.Equal(t, resp3.Array, n.DataType)
	assert.Equal(t, uint64(2), n.AggregateSize)
	assert.Equal(t, 4, consumed)
}

func TestParse_Push(t *testing.T) {
	buf := []byte(">3\r\n$9\r\nsubscribe\r\n$7\r\nchannel\r\n:1\r\n")
	root, _, err := resp3.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, resp3.Push, root.DataType)
	assert.Equal(t, uint64(3), root.AggregateSize)
}

func TestParse_MapDoublesChildCount(t *testing.T) {
	n, _, err := resp3.Parse([]byte("%2\r\n"))
	require.NoError(t, err)
	assert.Equal(t, resp3.Map, n.DataType)
	assert.Equal(t, uint64(4), n.AggregateSize)
}

func TestParse_AttributeDoublesChildCount(t *testing.T) {
	n, _, err := resp3.Parse([]byte("|1\r\n"))
	require.NoError(t, err)
	assert.Equal(t, resp3.Attribute, n.DataType)
	assert.Equal(t, uint64(2), n.AggregateSize)
}

func TestParse_Number(t *testing.T) {
	n, _, err := resp3.Parse([]byte(":1000\r\n"))
	require.NoError(t, err)
	assert.Equal(t, resp3.Number, n.DataType)
	assert.Equal(t, "1000", string(n.Data))
}

func TestParse_NumberInvalid(t *testing.T) {
	_, _, err := resp3.Parse([]byte(":a\r\n"))
	require.Error(t, err)
	assert.Equal(t, rrerror.ErrNotANumber, rrerror.Code(err))
}

func TestParse_Doublean(t *testing.T) {
	for _, tok := range []string{"3.14", "inf", "-inf", "nan"} {
		n, _, err := resp3.Parse([]byte("," + tok + "\r\n"))
		require.NoError(t, err)
		assert.Equal(t, resp3.Doublean, n.DataType)
	}
}

func TestParse_DoubleanPlain(t *testing.T) {
	n, consumed, err := resp3.Parse([]byte(",3.14\r\n"))
	require.NoError(t, err)
	assert.Equal(t, resp3.Doublean, n.DataType)
	assert.Equal(t, 7, consumed)
}

func TestParse_BooleanTrue(t *testing.T) {
	n, _, err := resp3.Parse([]byte("#t\r\n"))
	require.NoError(t, err)
	assert.Equal(t, resp3.Boolean, n.DataType)
	assert.Equal(t, "t", string(n.Data))
}

func TestParse_BooleanInvalid(t *testing.T) {
	_, _, err := resp3.Parse([]byte("#x\r\n"))
	require.Error(t, err)
	assert.Equal(t, rrerror.ErrNotANumber, rrerror.Code(err))
}

func TestParse_BigNumber(t *testing.T) {
	n, _, err := resp3.Parse([]byte("(3492890328409238509324850943850943825024385\r\n"))
	require.NoError(t, err)
	assert.Equal(t, resp3.BigNumber, n.DataType)
}

func TestParse_VerbatimString(t *testing.T) {
	n, _, err := resp3.Parse([]byte("=9\r\ntxt:hello\r\n"))
	require.NoError(t, err)
	assert.Equal(t, resp3.VerbatimString, n.DataType)
	assert.Equal(t, "txt:hello", string(n.Data))
}

func TestParse_BlobError(t *testing.T) {
	n, _, err := resp3.Parse([]byte("!21\r\nSYNTAX invalid syntax\r\n"))
	require.NoError(t, err)
	assert.Equal(t, resp3.BlobError, n.DataType)
}

func TestParse_SimpleError(t *testing.T) {
	n, _, err := resp3.Parse([]byte("-ERR unknown command\r\n"))
	require.NoError(t, err)
	assert.Equal(t, resp3.SimpleError, n.DataType)
	assert.Equal(t, "ERR unknown command", string(n.Data))
}

func TestParse_StreamedBlobString(t *testing.T) {
	buf := []byte("$?\r\n;4\r\nHell\r\n;1\r\no\r\n;0\r\n")
	root, off, err := resp3.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, resp3.BlobString, root.DataType)
	assert.Equal(t, resp3.StreamUnbounded, root.AggregateSize)

	n1, c1, err := resp3.Parse(buf[off:])
	require.NoError(t, err)
	assert.Equal(t, "Hell", string(n1.Data))
	off += c1

	n2, c2, err := resp3.Parse(buf[off:])
	require.NoError(t, err)
	assert.Equal(t, "o", string(n2.Data))
	off += c2

	n3, _, err := resp3.Parse(buf[off:])
	require.NoError(t, err)
	assert.Equal(t, resp3.StreamedStringPart, n3.DataType)
	assert.Equal(t, uint64(0), n3.AggregateSize)
	assert.Len(t, n3.Data, 0)
}

func TestParse_StreamedAggregateTerminator(t *testing.T) {
	buf := []byte("*?\r\n:1\r\n:2\r\n.\r\n")
	root, off, err := resp3.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, resp3.StreamUnbounded, root.AggregateSize)

	n1, c1, err := resp3.Parse(buf[off:])
	require.NoError(t, err)
	off += c1
	assert.Equal(t, "1", string(n1.Data))

	n2, c2, err := resp3.Parse(buf[off:])
	require.NoError(t, err)
	off += c2
	assert.Equal(t, "2", string(n2.Data))

	term, _, err := resp3.Parse(buf[off:])
	require.NoError(t, err)
	assert.True(t, term.IsStreamTerminator)
}

func TestParse_NeedMoreBytes(t *testing.T) {
	_, consumed, err := resp3.Parse([]byte("$5\r\nhel"))
	require.Error(t, err)
	assert.Equal(t, 0, consumed)
	assert.Equal(t, rrerror.ErrUnexpectedEOF, rrerror.Code(err))

	_, _, err = resp3.Parse([]byte("+PONG"))
	require.Error(t, err)
	assert.Equal(t, rrerror.ErrUnexpectedEOF, rrerror.Code(err))

	_, _, err = resp3.Parse(nil)
	require.Error(t, err)
	assert.Equal(t, rrerror.ErrUnexpectedEOF, rrerror.Code(err))
}

func TestParse_InvalidLeadByte(t *testing.T) {
	_, _, err := resp3.Parse([]byte("/wat\r\n"))
	require.Error(t, err)
	assert.Equal(t, rrerror.ErrInvalidLeadByte, rrerror.Code(err))
}

func TestParse_IncrementalFeed(t *testing.T) {
	full := []byte("*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")
	for split := 1; split < len(full); split++ {
		_, consumed, err := resp3.Parse(full[:split])
		if err == nil {
			assert.LessOrEqual(t, consumed, split)
			continue
		}
		assert.Equal(t, rrerror.ErrUnexpectedEOF, rrerror.Code(err))
	}
	nodes := parseAll(t, full, 3)
	assert.Equal(t, resp3.Array, nodes[0].DataType)
	assert.Equal(t, "foo", string(nodes[1].Data))
	assert.Equal(t, "bar", string(nodes[2].Data))
}
