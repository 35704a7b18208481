/*
Package resp3pipe - multiplexed, pipelined RESP3 connection core.

https://redis.io/docs/latest/develop/reference/protocol-spec/

A single long-lived connection writes commands to Redis as soon as they
arrive and reads replies from another goroutine, routing each reply back to
whichever caller submitted the matching request. Unlike implicit-pipelining
connectors that batch requests to trade latency for throughput, this design
multiplexes: many concurrent callers share one connection, each blocked only
on its own reply, with no connection-per-request pool and no explicit batching
required from the caller.

Capabilities

- RESP3 wire format: maps, sets, doubles, booleans, big numbers, verbatim
strings, attributes, and streamed (unknown-length) aggregates and strings,

- out-of-band push messages (pub/sub, client-side caching invalidation)
demultiplexed onto their own channel, separate from command replies,

- per-request policy: coalesce into a shared write, survive a reconnect,
fail fast if not connected, or fail only if the connection is lost mid-flight,

- automatic HELLO 3 handshake, reconnect after a fixed interval, and a
ping/idle liveness monitor,

- hook for custom logging of lifecycle transitions.

Limitations

- the root package is empty; the wire codec lives in resp3, protocol/IO
errors in rrerror, and the connection itself in conn,

- there is no cluster-topology layer: each conn.Connection is one connection
to one address. Building a sharded or cluster-aware sender on top is left to
the caller, the same way redisconn.Connection underlies rediscluster in
the connector this one descends from.

Structure

- resp3 subpackage: the RESP3 node type and the incremental parser/writer,

- rrerror subpackage: the taxonomy of protocol, IO, and connection errors
every operation returns,

- conn subpackage: Connection, its pipeline queue, and the run supervisor
that drives resolve/connect/greet/run/reconnect,

- cmd/resp3ping: a diagnostic CLI exercising the whole stack end to end.

Usage

conn.New builds a Connection bound to a host:port; conn.Connection.Run drives
its lifecycle in its own goroutine. Once running, conn.Connection.Exec
submits a pre-built RESP3 command and blocks until every expected reply has
been delivered to the caller's conn.Adapter. conn.Connection.ReceivePush waits
for the next out-of-band push. conn.Connection.Cancel targets one kind of
operation: every queued exec at once, the run itself, or a pending
ReceivePush/ReceiveEvent.

Results are delivered as a flat, pre-order walk of resp3.Node values rather
than deserialized into plain Go types: the caller's Adapter decides how much
of a response tree it wants to materialize into Go values. The reader decodes
each whole top-level response tree into memory before handing its nodes to
the adapter.
*/
package resp3pipe
