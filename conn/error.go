package conn

import (
	"github.com/joomcode/errorx"

	"github.com/nilsc-dev/resp3pipe/rrerror"
)

// Error properties decorating a *rrerror.Error on its way out of the
// connection, in the shape of redisconn/error.go's EKConnection/EKDb.
var (
	// EKAddr is the remote address the error is associated with.
	EKAddr = errorx.RegisterProperty("addr")
	// EKRequest carries a short description of the in-flight request that
	// the error terminated, where one is known.
	EKRequest = errorx.RegisterProperty("request")
)

// decorate wraps a *rrerror.Error as an errorx.Error carrying the
// connection's address (and, when known, a description of the request that
// was in flight), so callers that walk errorx properties see structured
// context instead of parsing the message string.
func decorate(err *rrerror.Error, addr string, reqDesc string) error {
	if err == nil {
		return nil
	}
	decorated := errorx.Decorate(err, err.Code.String()).WithProperty(EKAddr, addr)
	if reqDesc != "" {
		decorated = decorated.WithProperty(EKRequest, reqDesc)
	}
	return decorated
}
