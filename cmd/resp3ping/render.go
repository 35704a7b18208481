package main

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/nilsc-dev/resp3pipe/conn"
	"github.com/nilsc-dev/resp3pipe/resp3"
)

// collectAdapter gathers every node of the single response tree a
// diagnostic exec expects, per conn.Adapter's depth-first contract.
type collectAdapter struct {
	nodes []resp3.Node
}

func (a *collectAdapter) OnNode(_ uint64, n resp3.Node) error {
	a.nodes = append(a.nodes, n)
	return nil
}

func (a *collectAdapter) SupportedResponseSize() uint64 { return 1 }

// execOne builds one RESP3 command from args (args[0] is the command name)
// and runs it to completion, returning the decoded response tree and how
// long Exec took.
func execOne(c *conn.Connection, args []string) ([]resp3.Node, time.Duration, error) {
	var b resp3.RequestBuilder
	rest := make([]interface{}, len(args)-1)
	for i, a := range args[1:] {
		rest[i] = a
	}
	b.Push(args[0], rest...)

	req := conn.Request{
		Payload: b.Payload(),
		Size:    b.Size(),
		Desc:    args[0],
		Config:  conn.RequestConfig{Coalesce: true},
	}

	adapter := &collectAdapter{}
	start := time.Now()
	_, err := c.Exec(req, adapter)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, err
	}
	return adapter.nodes, elapsed, nil
}

// renderTreeJSON decodes a flat pre-order node list into nested JSON,
// assembles it into a {command, elapsed_ms, result} envelope with sjson
// (the same set-path-into-raw-bytes approach inmemory_store.go uses to build
// its stored documents), and pretty-prints the envelope via gjson's
// "@pretty" modifier.
func renderTreeJSON(command string, elapsed time.Duration, nodes []resp3.Node) string {
	var result interface{} = nil
	if len(nodes) > 0 {
		i := 0
		result = decodeNode(nodes, &i)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err.Error()
	}

	doc := []byte("{}")
	doc, err = sjson.SetBytes(doc, "command", command)
	if err != nil {
		return err.Error()
	}
	doc, err = sjson.SetBytes(doc, "elapsed_ms", elapsed.Milliseconds())
	if err != nil {
		return err.Error()
	}
	doc, err = sjson.SetRawBytes(doc, "result", resultJSON)
	if err != nil {
		return err.Error()
	}
	return gjson.ParseBytes(doc).Get("@pretty").String()
}

func decodeNode(nodes []resp3.Node, i *int) interface{} {
	if *i >= len(nodes) {
		return nil
	}
	n := nodes[*i]
	*i++

	switch n.DataType {
	case resp3.Array, resp3.Push, resp3.Set:
		if n.AggregateSize == resp3.StreamUnbounded {
			return decodeStreamedAggregate(nodes, i)
		}
		out := make([]interface{}, 0, n.AggregateSize)
		for k := uint64(0); k < n.AggregateSize; k++ {
			out = append(out, decodeNode(nodes, i))
		}
		return out

	case resp3.Map, resp3.Attribute:
		if n.AggregateSize == resp3.StreamUnbounded {
			return decodeStreamedAggregate(nodes, i)
		}
		out := make(map[string]interface{}, n.AggregateSize/2)
		for k := uint64(0); k < n.AggregateSize; k += 2 {
			key := decodeNode(nodes, i)
			val := decodeNode(nodes, i)
			out[asKey(key)] = val
		}
		return out

	case resp3.Null:
		return nil
	case resp3.Boolean:
		return len(n.Data) > 0 && n.Data[0] == 't'
	case resp3.Number:
		num, _ := strconv.ParseInt(string(n.Data), 10, 64)
		return num
	case resp3.Doublean:
		return string(n.Data)
	case resp3.SimpleError:
		return map[string]interface{}{"error": string(n.Data)}
	case resp3.BlobError:
		if n.AggregateSize == resp3.StreamUnbounded {
			return map[string]interface{}{"error": decodeStreamedString(n, nodes, i)}
		}
		return map[string]interface{}{"error": string(n.Data)}
	case resp3.BlobString:
		if n.AggregateSize == resp3.StreamUnbounded {
			return decodeStreamedString(n, nodes, i)
		}
		return string(n.Data)
	case resp3.VerbatimString:
		if n.AggregateSize == resp3.StreamUnbounded {
			return decodeStreamedString(n, nodes, i)
		}
		if len(n.Data) >= 4 {
			return string(n.Data[4:])
		}
		return string(n.Data)
	case resp3.StreamedStringPart:
		return decodeStreamedString(n, nodes, i)
	default:
		return string(n.Data)
	}
}

// decodeStreamedAggregate consumes children until the dedicated
// terminator frame, per spec.md §4.1's streamed-aggregate rule.
func decodeStreamedAggregate(nodes []resp3.Node, i *int) []interface{} {
	var out []interface{}
	for *i < len(nodes) {
		if nodes[*i].IsStreamTerminator {
			*i++
			return out
		}
		out = append(out, decodeNode(nodes, i))
	}
	return out
}

// decodeStreamedString concatenates StreamedStringPart chunks until the
// zero-length terminating chunk, per spec.md §4.1.
func decodeStreamedString(first resp3.Node, nodes []resp3.Node, i *int) string {
	out := string(first.Data)
	for *i < len(nodes) {
		n := nodes[*i]
		if n.DataType != resp3.StreamedStringPart {
			break
		}
		*i++
		if len(n.Data) == 0 {
			break
		}
		out += string(n.Data)
	}
	return out
}

func asKey(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, _ := json.Marshal(v)
	return string(raw)
}
