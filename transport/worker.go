package transport

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/vela-web/vela/internal/poller"
	"github.com/vela-web/vela/settings"
)

// worker owns a readiness notifier and a disjoint subset of connections.
// Within a worker processing is single-threaded and cooperative: it blocks in
// poll, dispatches each ready event, and returns to poll.
type worker struct {
	id       int
	poller   *poller.Epoll
	handler  Handler
	registry *Registry
	log      *zap.Logger

	mu    sync.Mutex
	peers map[uint64]*Peer

	readBuf []byte
	events  []poller.Event
	timeout settings.Poller
	done    chan struct{}
}

func newWorker(
	id int, handler Handler, registry *Registry, s settings.Settings, log *zap.Logger, done chan struct{},
) (*worker, error) {
	p, err := poller.NewEpoll()
	if err != nil {
		return nil, err
	}

	return &worker{
		id:       id,
		poller:   p,
		handler:  handler,
		registry: registry,
		log:      log,
		peers:    make(map[uint64]*Peer),
		readBuf:  make([]byte, s.TCP.ReadBufferSize),
		events:   make([]poller.Event, s.Poller.MaxEvents),
		timeout:  s.Poller,
		done:     done,
	}, nil
}

// adopt hands the peer over to this worker. Registrations are edge-triggered,
// so the worker must drain the socket until it would block on every delivery.
func (w *worker) adopt(p *Peer) error {
	w.mu.Lock()
	w.peers[p.id] = p
	w.mu.Unlock()

	return w.poller.AddFd(p.fd, poller.Read|poller.Hangup, poller.Tag(p.id), poller.Edge)
}

func (w *worker) run() {
	defer w.close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		n, err := w.poller.Poll(w.events, time.Duration(w.timeout.Timeout))
		if err != nil {
			w.log.Error("worker: poll failed", zap.Int("worker", w.id), zap.Error(err))
			return
		}

		for _, event := range w.events[:n] {
			w.mu.Lock()
			peer := w.peers[uint64(event.Tag)]
			w.mu.Unlock()
			if peer == nil {
				continue
			}

			switch {
			case event.Interest.Has(poller.Read):
				w.readable(peer)
			case event.Interest.Has(poller.Hangup):
				w.drop(peer)
			}
		}
	}
}

// readable drains the socket until it reports would-block, feeding every chunk
// to the handler in arrival order.
func (w *worker) readable(p *Peer) {
	for {
		n, err := unix.Read(p.fd, w.readBuf)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return
		case err != nil || n == 0:
			w.drop(p)
			return
		}

		w.handler.OnInput(w.readBuf[:n], p)
	}
}

func (w *worker) drop(p *Peer) {
	w.handler.OnDisconnection(p)
	_ = w.poller.RemoveFd(p.fd)
	_ = unix.Close(p.fd)
	w.registry.Drop(p)

	w.mu.Lock()
	delete(w.peers, p.id)
	w.mu.Unlock()
}

func (w *worker) close() {
	w.mu.Lock()
	peers := make([]*Peer, 0, len(w.peers))
	for _, p := range w.peers {
		peers = append(peers, p)
	}
	w.mu.Unlock()

	for _, p := range peers {
		w.drop(p)
	}

	_ = w.poller.Close()
}
