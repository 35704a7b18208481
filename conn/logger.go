package conn

import "log"

// LogKind enumerates the connection lifecycle events a Logger can observe.
// Extends the teacher's redisconn.LogKind set with the resolve/hello/idle/
// reconnect events this design's run supervisor introduces.
type LogKind int

const (
	LogResolving LogKind = iota
	LogResolved
	LogConnecting
	LogConnected
	LogConnectFailed
	LogGreeting
	LogHello
	LogHelloFailed
	LogRunning
	LogIdleTimeout
	LogDisconnected
	LogReconnecting
	LogTerminated
)

var logKindName = [...]string{
	"resolving", "resolved", "connecting", "connected", "connect_failed",
	"greeting", "hello", "hello_failed", "running", "idle_timeout",
	"disconnected", "reconnecting", "terminated",
}

// String names the event for structured-logging adapters (see
// cmd/resp3ping's zap-backed Logger).
func (k LogKind) String() string {
	if int(k) >= 0 && int(k) < len(logKindName) {
		return logKindName[k]
	}
	return "unknown"
}

// Logger receives lifecycle notifications from a Connection. Report must
// not block for long: it is called from the connection's own goroutines.
type Logger interface {
	Report(event LogKind, conn *Connection, v ...interface{})
}

type defaultLogger struct{}

func (defaultLogger) Report(event LogKind, conn *Connection, v ...interface{}) {
	switch event {
	case LogResolving:
		log.Printf("resp3pipe: resolving %s", conn.Addr())
	case LogResolved:
		log.Printf("resp3pipe: resolved %s -> %v", conn.Addr(), v[0])
	case LogConnecting:
		log.Printf("resp3pipe: connecting to %s", conn.Addr())
	case LogConnected:
		log.Printf("resp3pipe: connected to %s (resolved %s)", conn.Addr(), v[0])
	case LogConnectFailed:
		log.Printf("resp3pipe: connect to %s failed: %s", conn.Addr(), v[0])
	case LogGreeting:
		log.Printf("resp3pipe: sending HELLO 3 to %s", conn.Addr())
	case LogHello:
		log.Printf("resp3pipe: hello completed with %s", conn.Addr())
	case LogHelloFailed:
		log.Printf("resp3pipe: hello with %s failed: %s", conn.Addr(), v[0])
	case LogRunning:
		log.Printf("resp3pipe: running against %s", conn.Addr())
	case LogIdleTimeout:
		log.Printf("resp3pipe: %s idle timeout, no data for %s", conn.Addr(), v[0])
	case LogDisconnected:
		log.Printf("resp3pipe: %s disconnected: %s", conn.Addr(), v[0])
	case LogReconnecting:
		log.Printf("resp3pipe: reconnecting to %s in %s", conn.Addr(), v[0])
	case LogTerminated:
		log.Printf("resp3pipe: run against %s terminated: %v", conn.Addr(), v[0])
	default:
		args := []interface{}{"resp3pipe: unexpected event", event, conn}
		log.Print(append(args, v...)...)
	}
}
