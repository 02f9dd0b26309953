package vela

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vela-web/vela/http"
	"github.com/vela-web/vela/http/status"
	"github.com/vela-web/vela/internal/parser"
	"github.com/vela-web/vela/settings"
	"github.com/vela-web/vela/stat"
	"github.com/vela-web/vela/transport"
)

// Handler is the application above the core. It is invoked synchronously by
// the worker owning the connection once a request is fully parsed, and must
// eventually call Send on the response. Neither the request nor the response
// may be retained past the return.
type Handler interface {
	OnRequest(request *http.Request, response *http.Response)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(request *http.Request, response *http.Response)

func (f HandlerFunc) OnRequest(request *http.Request, response *http.Response) {
	f(request, response)
}

// parserKey is the well-known key the per-connection parser is attached under
// in the peer's data store.
const parserKey = "__parser"

// httpConn glues the transport to the HTTP layer: it owns the feed/parse loop
// and the error-to-response mapping. Parser outcomes map as follows: Done
// invokes the handler; a protocol error answers with its code and reason; any
// panic escaping the handler answers 500 with the panic message. The parser is
// reset after each of the three.
type httpConn struct {
	handler  Handler
	settings settings.Settings
	metrics  *stat.Server
	log      *zap.Logger
}

func (h *httpConn) OnConnection(p *transport.Peer) {
	h.metrics.ConnectionsAccepted.Inc()
	p.Put(parserKey, parser.New(http.NewRequest(p.Remote()), h.settings.Parser))
}

func (h *httpConn) OnInput(data []byte, p *transport.Peer) {
	prs := h.parserOf(p)

	if !prs.Feed(data) {
		prs.Reset()
		h.metrics.ProtocolErrors.Inc()
		h.respondError(p, status.RequestEntityTooLarge, "Request exceeded maximum buffer size")
		return
	}

	state, err := prs.Parse()
	if err != nil {
		prs.Reset()
		h.metrics.ProtocolErrors.Inc()

		var httpErr status.HTTPError
		if errors.As(err, &httpErr) {
			h.respondError(p, httpErr.Code, httpErr.Message)
		} else {
			h.respondError(p, status.InternalServerError, err.Error())
		}

		return
	}

	if state == parser.Done {
		response := http.NewResponse(p.Ref(), h.responseBufferSize())
		h.invoke(prs.Request(), response, p)
		prs.Reset()
		h.metrics.RequestsCompleted.Inc()
	}
}

func (h *httpConn) OnDisconnection(*transport.Peer) {}

// invoke runs the user handler, recovering any panic into a 500 response.
func (h *httpConn) invoke(request *http.Request, response *http.Response, p *transport.Peer) {
	defer func() {
		if recovered := recover(); recovered != nil {
			h.log.Error("handler panicked", zap.Any("reason", recovered))
			h.respondError(p, status.InternalServerError, fmt.Sprint(recovered))
		}
	}()

	h.handler.OnRequest(request, response)
}

func (h *httpConn) respondError(p *transport.Peer, code status.Code, reason string) {
	response := http.NewResponse(p.Ref(), h.responseBufferSize())
	if _, err := response.Send(code, reason, ""); err != nil {
		h.log.Warn("error response failed", zap.Error(err))
	}
}

// The response scratch is twice the parser's maximum request buffer.
func (h *httpConn) responseBufferSize() int {
	return int(h.settings.Parser.BufferSize.Maximal) << 1
}

func (h *httpConn) parserOf(p *transport.Peer) *parser.Parser {
	value, _ := p.Get(parserKey)
	return value.(*parser.Parser)
}
