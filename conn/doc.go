// Package conn implements the long-lived multiplexed RESP3 connection: a
// single-socket, full-duplex pipeline with one writer and one reader
// cooperating over a FIFO queue of in-flight requests, a push side-channel
// for unsolicited server messages, a ping/idle liveness monitor, and a run
// supervisor that drives resolve/connect/hello and, optionally, reconnect.
//
// Grounded on redisconn/conn.go's shard/oneconn/writer/reader architecture,
// generalized from N independent RESP2 shards to a single RESP3 pipeline
// queue, and on aedis/connection.hpp for the event/operation/cancel
// semantics and per-request bookkeeping (req_info) that the distilled
// design draws from.
package conn
