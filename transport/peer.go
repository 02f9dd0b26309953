package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// Peer is the server-side representation of a single connected client. It owns
// the socket and the per-connection key/value store protocol layers attach
// their state to. A peer is exclusively owned by the worker its connection is
// assigned to.
type Peer struct {
	fd     int
	id     uint64
	remote net.Addr
	data   map[string]any
	reg    *Registry
}

func (p *Peer) Fd() int {
	return p.fd
}

func (p *Peer) Remote() net.Addr {
	return p.remote
}

// Put stores a value in the per-connection store under the key.
func (p *Peer) Put(key string, value any) {
	if p.data == nil {
		p.data = make(map[string]any, 1)
	}

	p.data[key] = value
}

// Get fetches a value from the per-connection store.
func (p *Peer) Get(key string) (any, bool) {
	value, ok := p.data[key]
	return value, ok
}

// Ref returns a non-owning reference to the peer. Dereferencing it fails
// observably once the peer has disconnected.
func (p *Peer) Ref() Ref {
	return Ref{reg: p.reg, id: p.id}
}

// Send writes the whole slice to the socket. A short write, including a
// would-block condition on a full send buffer, is reported to the caller
// together with the number of bytes that did go out; no retransmission is
// attempted.
func (p *Peer) Send(b []byte) (int, error) {
	var total int

	for total < len(b) {
		n, err := unix.Write(p.fd, b[total:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return total, err
		}

		total += n
	}

	return total, nil
}
