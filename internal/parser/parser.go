package parser

import (
	"github.com/vela-web/vela/http"
	"github.com/vela-web/vela/internal/buffer"
	"github.com/vela-web/vela/internal/stream"
	"github.com/vela-web/vela/settings"
)

// Parser is the driver running the request-line, headers and body steps in
// order over a per-connection buffer. It is resumable: Parse picks up at the
// step the previous call suspended in, over whatever bytes have been fed since.
//
// One parser exists per connection and never outlives it. After Done, Reset
// must be called before the next request on the same connection can be parsed.
type Parser struct {
	buf     *buffer.Buffer
	cursor  *stream.Cursor
	steps   [3]step
	current int
	request *http.Request
}

func New(request *http.Request, s settings.Parser) *Parser {
	buf := buffer.New(int(s.BufferSize.Default), int(s.BufferSize.Maximal))

	return &Parser{
		buf:    buf,
		cursor: stream.NewCursor(buf),
		steps: [3]step{
			&requestLineStep{request: request},
			&headersStep{request: request},
			&bodyStep{request: request},
		},
		request: request,
	}
}

// Request returns the in-progress request value. It is fully populated only
// after Parse reported Done.
func (p *Parser) Request() *http.Request {
	return p.request
}

// Feed appends received bytes to the buffer, returning false if the capacity
// would be exceeded. The caller must then reset the parser and fail the
// request.
func (p *Parser) Feed(data []byte) bool {
	return p.buf.Feed(data)
}

// Parse runs the current step. On Next it advances and re-enters the loop in
// the same call; Again and Done are reported to the caller. A protocol error
// carries a status code and reason via status.HTTPError.
func (p *Parser) Parse() (State, error) {
	for {
		state, err := p.steps[p.current].apply(p.cursor)
		if err != nil {
			return state, err
		}
		if state != Next {
			return state, nil
		}

		p.current++
	}
}

// Reset brings the parser back to the first step and clears the buffer, the
// cursor, the per-step scratch and the request fields. Allocations are kept,
// making the parser indistinguishable from a fresh one for subsequent use.
func (p *Parser) Reset() {
	p.buf.Clear()
	p.cursor.Reset()
	p.current = 0
	p.request.Reset()

	for _, s := range p.steps {
		s.reset()
	}
}
