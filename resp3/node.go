package resp3

// Node is a single decoded RESP3 element, per spec.md §3. Aggregates carry
// no Data and report their child count in AggregateSize (for Map/Attribute
// that is 2x the wire length, i.e. counts key+value individually). Leaves
// carry their raw bytes in Data and report AggregateSize 0.
type Node struct {
	Depth         uint32
	DataType      Type
	AggregateSize uint64
	Data          []byte

	// IsStreamTerminator is set on the dedicated "." terminator frame that
	// ends a streamed ("?"-length) aggregate opened with AggregateSize ==
	// StreamUnbounded. It carries no DataType of its own.
	IsStreamTerminator bool
}

// IsNull reports whether this node represents a RESP3 null (aggregate
// length -1, or the dedicated Null type).
func (n Node) IsNull() bool {
	return n.DataType == Null
}

// TreeNodeCount returns the number of Nodes in an already-decoded pre-order
// tree, root included (simply len(nodes)), for checking spec.md §8
// invariant 1.
func TreeNodeCount(nodes []Node) int {
	return len(nodes)
}
