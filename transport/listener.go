package transport

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/vela-web/vela/internal/poller"
	"github.com/vela-web/vela/settings"
)

// Handler receives connection lifecycle callbacks from the listener's workers.
// OnInput is invoked with a borrowed slice that is only valid for the duration
// of the call.
type Handler interface {
	OnConnection(p *Peer)
	OnInput(data []byte, p *Peer)
	OnDisconnection(p *Peer)
}

const listenTag poller.Tag = 0

// Listener accepts TCP connections on a nonblocking socket and spreads them
// across a fixed worker pool. Each worker owns its own readiness notifier, so
// a connection is only ever touched by the worker it was assigned to.
type Listener struct {
	fd       int
	addr     *net.TCPAddr
	poller   *poller.Epoll
	workers  []*worker
	registry *Registry
	handler  Handler
	settings settings.Settings
	log      *zap.Logger
	next     int
	done     chan struct{}
}

func NewListener(addr string, s settings.Settings, handler Handler, log *zap.Logger) (*Listener, error) {
	resolved, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Listener{
		fd:       -1,
		addr:     resolved,
		registry: NewRegistry(),
		handler:  handler,
		settings: s,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

// Registry exposes the live-peer registry backing the weak peer references.
func (l *Listener) Registry() *Registry {
	return l.registry
}

// Bind creates the listening socket. After a successful bind, Addr reports the
// effective address, which matters when port 0 was requested.
func (l *Listener) Bind() error {
	sa, family, err := sockaddrOf(l.addr)
	if err != nil {
		return err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return err
	}

	if err = l.applyFlags(fd); err != nil {
		_ = unix.Close(fd)
		return err
	}

	if err = unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return err
	}

	if err = unix.Listen(fd, l.settings.TCP.Backlog); err != nil {
		_ = unix.Close(fd)
		return err
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return err
	}

	l.fd = fd
	l.addr = addrOf(bound)

	return nil
}

func (l *Listener) applyFlags(fd int) error {
	flags := l.settings.TCP.Flags

	if flags.Has(settings.ReuseAddr) {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return err
		}
	}
	if flags.Has(settings.ReusePort) {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			return err
		}
	}

	return nil
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() *net.TCPAddr {
	return l.addr
}

// Run starts the workers and blocks in the accept loop until Stop is called.
func (l *Listener) Run() error {
	if l.fd < 0 {
		return fmt.Errorf("listener: Run called before Bind")
	}

	accept, err := poller.NewEpoll()
	if err != nil {
		return err
	}
	l.poller = accept
	defer func() { _ = accept.Close() }()

	if err = accept.AddFd(l.fd, poller.Read, listenTag, poller.Level); err != nil {
		return err
	}

	l.workers = make([]*worker, l.settings.TCP.Workers)
	for i := range l.workers {
		w, err := newWorker(i, l.handler, l.registry, l.settings, l.log, l.done)
		if err != nil {
			return err
		}

		l.workers[i] = w
		go w.run()
	}

	l.log.Info("listening", zap.String("addr", l.addr.String()), zap.Int("workers", len(l.workers)))

	events := make([]poller.Event, 1)
	for {
		select {
		case <-l.done:
			return nil
		default:
		}

		n, err := accept.Poll(events, time.Duration(l.settings.Poller.Timeout))
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}

		l.acceptPending()
	}
}

// acceptPending drains the accept queue, assigning each connection to a worker
// round-robin.
func (l *Listener) acceptPending() {
	for {
		fd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return
		case err != nil:
			l.log.Error("accept failed", zap.Error(err))
			return
		}

		if l.settings.TCP.Flags.Has(settings.NoDelay) {
			_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		}

		peer := l.registry.Adopt(fd, addrOf(sa))
		l.handler.OnConnection(peer)

		w := l.workers[l.next%len(l.workers)]
		l.next++

		if err = w.adopt(peer); err != nil {
			l.log.Error("worker registration failed", zap.Error(err))
			l.registry.Drop(peer)
			_ = unix.Close(fd)
		}
	}
}

// Stop shuts the listener and all its connections down.
func (l *Listener) Stop() {
	close(l.done)

	if l.fd >= 0 {
		_ = unix.Close(l.fd)
		l.fd = -1
	}
}
