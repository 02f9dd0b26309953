package http

import (
	"net"

	"github.com/vela-web/vela/http/headers"
	"github.com/vela-web/vela/http/method"
	"github.com/vela-web/vela/http/proto"
	"github.com/vela-web/vela/kv"
)

// Query holds the raw key/value pairs of the request target. Duplicate keys
// keep the first value on lookup.
type Query = *kv.Storage

// Request represents a single HTTP request. It is created empty by the parser
// driver when a new parse begins, mutated only by parser steps, and must not be
// retained past the handler's return.
type Request struct {
	Method method.Method
	Proto  proto.Proto
	// Path is the request target as it appeared on the wire; no percent-decoding
	// is performed at this layer.
	Path    string
	Query   Query
	Headers *headers.Collection
	Body    []byte
	// Remote holds the remote address. Note that this is generally not a good
	// parameter to identify a user, because there might be proxies in the middle.
	Remote net.Addr
}

func NewRequest(remote net.Addr) *Request {
	return &Request{
		Proto:   proto.HTTP11,
		Query:   kv.New(),
		Headers: headers.NewCollection(),
		Remote:  remote,
	}
}

// Reset clears the request for the next parse on the same connection. The
// allocated storage is kept.
func (r *Request) Reset() {
	r.Method = method.Unknown
	r.Proto = proto.HTTP11
	r.Path = ""
	r.Query.Clear()
	r.Headers.Clear()
	r.Body = r.Body[:0]
}
