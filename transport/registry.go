package transport

import (
	"errors"
	"net"
	"sync"
)

// ErrBrokenPipe is returned when a peer reference is dereferenced after the
// peer has disconnected.
var ErrBrokenPipe = errors.New("broken pipe: peer has disconnected")

// Registry tracks the live peers. Peer ids are issued monotonically and never
// reused, so holding an id of a dropped peer can never resolve to a newer
// connection.
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	peers  map[uint64]*Peer
}

func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[uint64]*Peer),
	}
}

// Adopt takes ownership of a connected socket and returns its peer.
func (r *Registry) Adopt(fd int, remote net.Addr) *Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	peer := &Peer{
		fd:     fd,
		id:     r.nextID,
		remote: remote,
		reg:    r,
	}
	r.peers[peer.id] = peer

	return peer
}

// Drop forgets the peer, invalidating all the outstanding references to it.
// The socket itself is closed by the owning worker.
func (r *Registry) Drop(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.peers, p.id)
}

func (r *Registry) lookup(id uint64) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, ok := r.peers[id]
	return peer, ok
}

// Len returns the number of live peers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.peers)
}

// Ref is a non-owning reference to a peer. The zero value dereferences to
// ErrBrokenPipe.
type Ref struct {
	reg *Registry
	id  uint64
}

// Deref upgrades the reference, failing with ErrBrokenPipe if the peer has
// disconnected in the meantime.
func (r Ref) Deref() (*Peer, error) {
	if r.reg == nil {
		return nil, ErrBrokenPipe
	}

	peer, ok := r.reg.lookup(r.id)
	if !ok {
		return nil, ErrBrokenPipe
	}

	return peer, nil
}
