package resp3

import (
	"strconv"

	"github.com/nilsc-dev/resp3pipe/rrerror"
)

// StreamUnbounded marks a streamed ("?"-length) aggregate or blob string:
// the child count isn't known up front and the caller must keep pulling
// nodes until it sees a terminator (see Node.IsStreamTerminator, and for
// blob strings a StreamedStringPart of size 0).
const StreamUnbounded = ^uint64(0)

// errNeedMore is returned (wrapped in an *rrerror.Error with code
// ErrUnexpectedEOF) when buf does not yet hold a complete frame. It is the
// parser's "need-more-bytes" signal: soft, not protocol-fatal.
func errNeedMore() *rrerror.Error {
	return rrerror.New(rrerror.KindProtocol, rrerror.ErrUnexpectedEOF)
}

// Parse decodes exactly one RESP3 frame from the head of buf.
//
// On success it returns the decoded Node and the number of bytes of buf
// the frame occupied; the caller advances its read offset by that amount
// and may call Parse again on the remainder.
//
// If buf does not yet contain a complete frame, Parse returns a soft
// ErrUnexpectedEOF (consumed == 0): the caller should read more bytes from
// the socket, append them to buf, and retry from the same offset — the
// parser keeps no state of its own between calls (depth tracking is the
// caller's job, via a depth-first walk driven by AggregateSize).
func Parse(buf []byte) (node Node, consumed int, err error) {
	if len(buf) == 0 {
		return Node{}, 0, errNeedMore()
	}

	lead := buf[0]
	typ := TypeFromLead(lead)
	if typ == Invalid {
		if lead == '.' {
			if crlfLenAt(buf, 1) == 0 {
				return Node{}, 0, errNeedMore()
			}
			return Node{IsStreamTerminator: true}, 1 + 2, nil
		}
		return Node{}, 0, rrerror.New(rrerror.KindProtocol, rrerror.ErrInvalidLeadByte).
			With("byte", lead)
	}

	line, lineLen, ok := readLine(buf[1:])
	if !ok {
		return Node{}, 0, errNeedMore()
	}
	headerLen := 1 + lineLen

	switch typ {
	case Array, Push, Set, Map, Attribute:
		return parseAggregateHeader(typ, line, headerLen)

	case SimpleString, SimpleError, BigNumber:
		return Node{DataType: typ, Data: cloneBytes(line)}, headerLen, nil

	case Number:
		if _, err := parseInt(line); err != nil {
			return Node{}, 0, err
		}
		return Node{DataType: Number, Data: cloneBytes(line)}, headerLen, nil

	case Doublean:
		if err := validateDouble(line); err != nil {
			return Node{}, 0, err
		}
		return Node{DataType: Doublean, Data: cloneBytes(line)}, headerLen, nil

	case Boolean:
		if len(line) != 1 || (line[0] != 't' && line[0] != 'f') {
			return Node{}, 0, rrerror.New(rrerror.KindProtocol, rrerror.ErrNotANumber).
				With("token", string(line))
		}
		return Node{DataType: Boolean, Data: cloneBytes(line)}, headerLen, nil

	case Null:
		return Node{DataType: Null}, headerLen, nil

	case BlobString, BlobError, VerbatimString, StreamedStringPart:
		return parseBlobLike(typ, line, buf, headerLen)

	default:
		return Node{}, 0, rrerror.New(rrerror.KindProtocol, rrerror.ErrInvalidLeadByte).With("byte", lead)
	}
}

// parseAggregateHeader handles *, >, ~, %, | frames: a decimal (or "?")
// length followed by CRLF. Map/Attribute report 2x the wire length as the
// child count (key+value pairs each count as two elements per spec.md §3).
func parseAggregateHeader(typ Type, line []byte, headerLen int) (Node, int, error) {
	if len(line) == 1 && line[0] == '?' {
		return Node{DataType: typ, AggregateSize: StreamUnbounded}, headerLen, nil
	}
	n, err := parseInt(line)
	if err != nil {
		return Node{}, 0, err
	}
	if n < 0 {
		return Node{DataType: Null}, headerLen, nil
	}
	return Node{DataType: typ, AggregateSize: uint64(n) * typ.ChildMultiplier()}, headerLen, nil
}

// parseBlobLike handles $, !, =, ; frames: decimal (or "?") length, then
// exactly that many bytes, then CRLF. A StreamedStringPart with size 0
// (";0\r\n", no payload and no trailing CRLF) terminates a streamed blob
// string; a BlobString/BlobError/VerbatimString with length "?" opens one
// (spec.md §4.1).
func parseBlobLike(typ Type, line []byte, buf []byte, headerLen int) (Node, int, error) {
	if len(line) == 1 && line[0] == '?' {
		return Node{DataType: typ, AggregateSize: StreamUnbounded}, headerLen, nil
	}

	n, err := parseInt(line)
	if err != nil {
		return Node{}, 0, err
	}
	if n < 0 {
		return Node{DataType: Null}, headerLen, nil
	}
	if typ == StreamedStringPart && n == 0 {
		return Node{DataType: StreamedStringPart, Data: []byte{}}, headerLen, nil
	}

	need := headerLen + int(n) + 2
	if len(buf) < need {
		return Node{}, 0, errNeedMore()
	}
	payload := buf[headerLen : headerLen+int(n)]
	if buf[headerLen+int(n)] != '\r' || buf[headerLen+int(n)+1] != '\n' {
		return Node{}, 0, rrerror.New(rrerror.KindProtocol, rrerror.ErrExpectedCRLF)
	}

	verbatimPrefixOK := typ != VerbatimString || len(payload) >= 4 && payload[3] == ':'
	if !verbatimPrefixOK {
		return Node{}, 0, rrerror.New(rrerror.KindProtocol, rrerror.ErrExpectedCRLF).
			With("reason", "verbatim string missing 3-byte prefix")
	}

	return Node{DataType: typ, Data: cloneBytes(payload)}, need, nil
}

// readLine returns the bytes of buf up to (not including) the first CRLF,
// the number of bytes consumed including the CRLF, and whether a full line
// was found.
func readLine(buf []byte) (line []byte, consumed int, ok bool) {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' {
			return buf[:i], i + 2, true
		}
	}
	return nil, 0, false
}

func crlfLenAt(buf []byte, from int) int {
	if from+1 < len(buf) && buf[from] == '\r' && buf[from+1] == '\n' {
		return 2
	}
	return 0
}

func validateDouble(buf []byte) *rrerror.Error {
	s := string(buf)
	switch s {
	case "inf", "+inf", "-inf", "nan":
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return rrerror.New(rrerror.KindProtocol, rrerror.ErrNotANumber).With("token", s)
	}
	return nil
}

func parseInt(buf []byte) (int64, *rrerror.Error) {
	if len(buf) == 0 {
		return 0, rrerror.New(rrerror.KindProtocol, rrerror.ErrNotANumber)
	}
	v, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		return 0, rrerror.New(rrerror.KindProtocol, rrerror.ErrNotANumber).With("token", string(buf))
	}
	return v, nil
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
