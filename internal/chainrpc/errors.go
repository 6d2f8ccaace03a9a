package chainrpc

import "fmt"

// RPCError is a JSON-RPC 2.0 error object as returned by an EVM node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Error codes that mark an endpoint unhealthy per spec: a generic
// server error, an internal error, and a resource-unavailable error are
// all treated as the endpoint being in a bad state rather than the
// request being malformed.
const (
	codeServerError   = -32000
	codeInternalError = -32603
	codeResourceGone  = -32002
)

// marksUnhealthy reports whether an RPC error code should cause the
// endpoint that returned it to be marked unhealthy.
func marksUnhealthy(err error) bool {
	rpcErr, ok := err.(*RPCError)
	if !ok {
		return false
	}
	switch rpcErr.Code {
	case codeServerError, codeInternalError, codeResourceGone:
		return true
	default:
		return false
	}
}
