// Package vela is an embeddable HTTP/1.x server core: a readiness-driven TCP
// transport feeding an incremental request parser, with responses serialized
// back through the same connection.
package vela

import (
	"net"

	"go.uber.org/zap"

	"github.com/vela-web/vela/settings"
	"github.com/vela-web/vela/stat"
	"github.com/vela-web/vela/transport"
)

// App wires a listener, its worker pool and the HTTP connection glue together.
type App struct {
	addr     string
	settings settings.Settings
	log      *zap.Logger
	metrics  *stat.Server
	listener *transport.Listener
	hooks    hooks
}

type hooks struct {
	OnStart, OnStop func()
}

func New(addr string) *App {
	return &App{
		addr:     addr,
		settings: settings.Default(),
		log:      zap.NewNop(),
		metrics:  stat.NewServer(),
	}
}

// Tune replaces default settings. Zero-valued fields fall back to defaults.
func (a *App) Tune(s settings.Settings) *App {
	a.settings = settings.Fill(s)
	return a
}

// WithLogger replaces the no-op default logger.
func (a *App) WithLogger(log *zap.Logger) *App {
	a.log = log
	return a
}

// Metrics exposes the core's counters for registration by the embedding
// application.
func (a *App) Metrics() *stat.Server {
	return a.metrics
}

// NotifyOnStart calls the callback at the moment the listener is bound and
// about to accept connections.
func (a *App) NotifyOnStart(cb func()) *App {
	a.hooks.OnStart = cb
	return a
}

// NotifyOnStop calls the callback once the listener's accept loop has
// returned. The workers close their connections on their own, so some may
// still be open when the callback runs.
func (a *App) NotifyOnStop(cb func()) *App {
	a.hooks.OnStop = cb
	return a
}

// Addr returns the effective listen address. Valid once the OnStart hook has
// fired, which matters when port 0 was requested.
func (a *App) Addr() *net.TCPAddr {
	if a.listener == nil {
		return nil
	}

	return a.listener.Addr()
}

// Serve binds the listener and blocks serving connections until Stop is
// called.
func (a *App) Serve(handler Handler) error {
	glue := &httpConn{
		handler:  handler,
		settings: a.settings,
		metrics:  a.metrics,
		log:      a.log,
	}

	listener, err := transport.NewListener(a.addr, a.settings, glue, a.log)
	if err != nil {
		return err
	}
	a.listener = listener

	if err = listener.Bind(); err != nil {
		return err
	}

	callIfNotNil(a.hooks.OnStart)
	err = listener.Run()
	callIfNotNil(a.hooks.OnStop)

	return err
}

// Stop shuts the listener and all its connections down.
//
// NOTE: the call isn't blocking, the server may still be winding down after it
// returned.
func (a *App) Stop() {
	if a.listener != nil {
		a.listener.Stop()
	}
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}
