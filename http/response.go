package http

import (
	"errors"
	"strconv"

	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"

	"github.com/vela-web/vela/http/headers"
	"github.com/vela-web/vela/http/mime"
	"github.com/vela-web/vela/http/status"
	"github.com/vela-web/vela/transport"
)

// ErrInsufficientSpace is returned when a response does not fit the scratch
// buffer. Nothing is written to the peer in that case.
var ErrInsufficientSpace = errors.New("could not serialize response: insufficient space")

// Response accumulates headers and renders itself into a fixed-size scratch
// buffer on Send. It holds only a non-owning reference to the peer: sending
// after the peer disconnected fails with transport.ErrBrokenPipe.
type Response struct {
	headers *headers.Collection
	buff    []byte
	maxSize int
	peer    transport.Ref
}

// NewResponse returns a response builder writing through the given peer
// reference. bufSize bounds the serialized response; conventionally it is
// twice the parser's maximum request buffer.
func NewResponse(peer transport.Ref, bufSize int) *Response {
	return &Response{
		headers: headers.NewCollection(),
		buff:    make([]byte, 0, bufSize),
		maxSize: bufSize,
		peer:    peer,
	}
}

// Headers exposes the response's header collection.
func (r *Response) Headers() *headers.Collection {
	return r.headers
}

// Header adds a raw response header, replacing a present one under the same
// canonical name.
func (r *Response) Header(key, value string) *Response {
	r.headers.AddRaw(key, value)
	return r
}

// SendStatus sends a response with no body and no explicit media type.
func (r *Response) SendStatus(code status.Code) (int, error) {
	return r.Send(code, "", "")
}

// Send serializes the status line, the headers in insertion order, and the
// body into the scratch buffer, then hands the whole buffer to the transport.
// A non-empty body is announced with an auto-emitted Content-Length. If
// mimeType is non-empty and no Content-Type header is present, one is written;
// a present typed Content-Type has its media type overridden in place instead.
func (r *Response) Send(code status.Code, body string, mimeType mime.MIME) (int, error) {
	w := outbuf{dst: r.buff[:0], max: r.maxSize}

	w.str("HTTP/1.1 ")
	w.uint(uint64(code))
	w.byte(' ')
	w.str(string(status.Text(code)))
	w.crlf()

	if mimeType != "" {
		if ct, ok := r.headers.ContentType(); ok {
			ct.SetMime(mimeType)
		} else {
			w.str("Content-Type: ")
			w.str(mimeType)
			w.crlf()
		}
	}

	for _, entry := range r.headers.Expose() {
		w.str(entry.Key)
		w.str(": ")
		if entry.Typed != nil {
			w.typed(entry.Typed)
		} else {
			w.str(entry.Raw)
		}
		w.crlf()
	}

	if len(body) != 0 {
		w.str("Content-Length: ")
		w.uint(uint64(len(body)))
		w.crlf()
		w.crlf()
		w.str(body)
	} else {
		w.crlf()
	}

	if w.overflow {
		return 0, ErrInsufficientSpace
	}

	peer, err := r.peer.Deref()
	if err != nil {
		return 0, err
	}

	r.buff = w.dst[:0]

	return peer.Send(w.dst)
}

// SendJSON marshals the model and sends it as an application/json body.
func (r *Response) SendJSON(code status.Code, model any) (int, error) {
	data, err := json.ConfigDefault.Marshal(model)
	if err != nil {
		return 0, err
	}

	return r.Send(code, uf.B2S(data), mime.JSON)
}

// outbuf appends into a fixed-capacity slice, turning any write that would
// exceed it into a sticky overflow instead of growing.
type outbuf struct {
	dst      []byte
	max      int
	overflow bool
}

func (w *outbuf) str(s string) {
	if w.overflow || len(w.dst)+len(s) > w.max {
		w.overflow = true
		return
	}

	w.dst = append(w.dst, s...)
}

func (w *outbuf) byte(b byte) {
	if w.overflow || len(w.dst)+1 > w.max {
		w.overflow = true
		return
	}

	w.dst = append(w.dst, b)
}

func (w *outbuf) uint(n uint64) {
	if w.overflow {
		return
	}

	appended := strconv.AppendUint(w.dst, n, 10)
	if len(appended) > w.max {
		w.overflow = true
		return
	}

	w.dst = appended
}

func (w *outbuf) typed(h headers.Header) {
	if w.overflow {
		return
	}

	appended := h.AppendValue(w.dst)
	if len(appended) > w.max {
		w.overflow = true
		return
	}

	w.dst = appended
}

func (w *outbuf) crlf() {
	w.str("\r\n")
}
