package conn

import "github.com/nilsc-dev/resp3pipe/resp3"

// PushIndex is the sentinel cmd_index passed to Adapter.OnNode when the
// node belongs to a server-pushed message rather than an exec response.
const PushIndex = ^uint64(0)

// Adapter is the sink for parsed nodes, per spec.md §4.3: one per in-flight
// exec, walked depth-first over every response tree the request expects,
// plus the one passed to each ReceivePush call for a push. An
// adapter may reject a node with an error; that error fails only the
// originating exec (or push delivery) and does not abort the connection.
type Adapter interface {
	// OnNode is called once per node (root and every descendant) of each
	// decoded response tree belonging to this request, in pre-order.
	// cmdIndex identifies which of the request's commands the tree answers
	// ([0, req.Size)), or PushIndex for a push delivery.
	OnNode(cmdIndex uint64, node resp3.Node) error
	// SupportedResponseSize reports how many top-level response trees this
	// adapter is prepared to receive. A mismatch against the request's
	// Size at Exec time fails immediately with ErrIncompatibleSize.
	SupportedResponseSize() uint64
}

// AdapterFunc adapts a plain function to the Adapter interface for the
// common case where every node of every command is handled uniformly and
// the caller does not care to pre-declare a response size.
type AdapterFunc func(cmdIndex uint64, node resp3.Node) error

// OnNode implements Adapter.
func (f AdapterFunc) OnNode(cmdIndex uint64, node resp3.Node) error {
	return f(cmdIndex, node)
}

// SupportedResponseSize implements Adapter, returning 0 to mean "accept any
// size" — callers that care about exact arity should implement Adapter
// directly instead of using AdapterFunc.
func (f AdapterFunc) SupportedResponseSize() uint64 {
	return 0
}
