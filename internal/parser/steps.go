package parser

import (
	"github.com/indigo-web/utils/uf"

	"github.com/vela-web/vela/http"
	"github.com/vela-web/vela/http/headers"
	"github.com/vela-web/vela/http/method"
	"github.com/vela-web/vela/http/proto"
	"github.com/vela-web/vela/http/status"
	"github.com/vela-web/vela/internal/stream"
)

// step consumes one syntactic section of the request. A step must be
// restartable: the request-line and headers steps leave the cursor at the start
// of their section when returning Again, while the body step keeps the body
// bytes it already consumed.
type step interface {
	apply(c *stream.Cursor) (State, error)
	reset()
}

func raise(message string) error {
	return status.NewError(status.BadRequest, message)
}

// requestLineStep parses `METHOD SP request-target SP HTTP-version CRLF`,
// including the raw key=value query following '?' in the target.
type requestLineStep struct {
	request *http.Request
}

func (s *requestLineStep) apply(c *stream.Cursor) (State, error) {
	cp := c.Checkpoint()
	defer cp.Rollback()

	m, pending := matchMethod(c)
	if pending {
		return Again, nil
	}
	if m == method.Unknown {
		return 0, raise("Unknown HTTP request method")
	}
	s.request.Method = m

	if c.EOF() {
		return Again, nil
	}
	if c.Current() != ' ' {
		return 0, raise("Malformed HTTP request after Method, expected SP")
	}
	if !c.Advance(1) {
		return Again, nil
	}

	resource := c.Token()
	for {
		if c.EOF() {
			return Again, nil
		}
		if char := c.Current(); char == ' ' || char == '?' {
			break
		}
		c.Advance(1)
	}

	s.request.Path = resource.Text()

	if c.Current() == '?' {
		if !c.Advance(1) {
			return Again, nil
		}

		for {
			if c.EOF() {
				return Again, nil
			}
			if c.Current() == ' ' {
				break
			}

			key := c.Token()
			for {
				if c.EOF() {
					return Again, nil
				}
				if char := c.Current(); char == '=' {
					break
				} else if char == '&' || char == ' ' {
					return 0, raise("Malformed HTTP query, expected key=value")
				}
				c.Advance(1)
			}
			if key.Len() == 0 {
				return 0, raise("Malformed HTTP query, empty key")
			}
			name := key.Text()

			c.Advance(1)

			value := c.Token()
			if !matchUntil(c, ' ', '&') {
				return Again, nil
			}

			s.request.Query.Add(name, value.Text())

			if c.Current() == '&' {
				if !c.Advance(1) {
					return Again, nil
				}
			}
		}
	}

	// the SP in front of the version token
	if !c.Advance(1) {
		return Again, nil
	}

	version := c.Token()
	for !c.EOL() {
		if !c.Advance(1) {
			return Again, nil
		}
	}

	s.request.Proto = proto.Parse(uf.B2S(version.Bytes()))
	if s.request.Proto == proto.Unknown {
		return 0, raise("Encountered invalid HTTP version")
	}

	if !c.Advance(2) {
		return Again, nil
	}

	cp.Commit()
	return Next, nil
}

func (s *requestLineStep) reset() {}

// matchMethod matches the bytes at the cursor against the method table,
// advancing past the token on success. pending reports that some token is a
// strict extension of the available bytes, so the outcome isn't known yet.
func matchMethod(c *stream.Cursor) (m method.Method, pending bool) {
	for _, candidate := range method.List {
		literal := candidate.String()
		if stream.MatchRaw(literal, c) {
			return candidate, false
		}

		if c.Remaining() < len(literal) &&
			uf.B2S(c.Lookahead(len(literal))) == literal[:c.Remaining()] {
			pending = true
		}
	}

	return method.Unknown, pending
}

// matchUntil advances the cursor until one of the two delimiters, failing if
// the input runs out first.
func matchUntil(c *stream.Cursor, a, b byte) bool {
	for {
		if c.EOF() {
			return false
		}
		if char := c.Current(); char == a || char == b {
			return true
		}
		c.Advance(1)
	}
}

// headersStep parses `Name: value CRLF` fields until the blank line. Typed
// headers are constructed through the registry; everything else lands as a raw
// pair. Re-adding on section reparse is idempotent because the collection
// replaces by canonical name.
type headersStep struct {
	request *http.Request
}

func (s *headersStep) apply(c *stream.Cursor) (State, error) {
	cp := c.Checkpoint()
	defer cp.Rollback()

	for !c.EOL() {
		if c.EOF() {
			return Again, nil
		}

		name := c.Token()
		if !matchUntil(c, ':', ':') {
			return Again, nil
		}
		key := name.Text()
		if len(key) == 0 {
			return 0, raise("Malformed HTTP header, empty field name")
		}

		c.Advance(1)

		for {
			if c.EOF() {
				return Again, nil
			}
			if c.Current() != ' ' {
				break
			}
			c.Advance(1)
		}

		value := c.Token()
		for !c.EOL() {
			if !c.Advance(1) {
				return Again, nil
			}
		}

		raw := trimTrailingWS(value.Bytes())
		if headers.IsRegistered(key) {
			header := headers.Make(key)
			if err := header.ParseRaw(raw); err != nil {
				return 0, err
			}

			s.request.Headers.Add(header)
		} else {
			s.request.Headers.AddRaw(key, string(raw))
		}

		c.Advance(2)
	}

	cp.Commit()
	return Next, nil
}

func (s *headersStep) reset() {}

func trimTrailingWS(b []byte) []byte {
	for len(b) > 0 {
		if last := b[len(b)-1]; last != ' ' && last != '\t' {
			break
		}

		b = b[:len(b)-1]
	}

	return b
}

// bodyStep consumes exactly Content-Length bytes following the blank line that
// terminates the headers. It is the only step with persistent mid-section
// state, so it does not guard itself with a checkpoint: consumed body bytes
// stay consumed across resumptions.
type bodyStep struct {
	request   *http.Request
	started   bool
	bytesRead int
}

func (s *bodyStep) apply(c *stream.Cursor) (State, error) {
	contentLength, ok := s.request.Headers.ContentLength()
	if !ok {
		return Done, nil
	}

	if !s.started {
		// the blank line separating headers from body
		if !c.Advance(2) {
			return Again, nil
		}

		s.started = true
		if cap(s.request.Body) < contentLength {
			s.request.Body = make([]byte, 0, contentLength)
		}
	}

	pending := contentLength - s.bytesRead
	if available := c.Remaining(); available < pending {
		pending = available
	}

	s.request.Body = append(s.request.Body, c.Lookahead(pending)...)
	c.Advance(pending)
	s.bytesRead += pending

	if s.bytesRead < contentLength {
		return Again, nil
	}

	s.reset()
	return Done, nil
}

func (s *bodyStep) reset() {
	s.started = false
	s.bytesRead = 0
}
