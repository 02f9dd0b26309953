package headers

import (
	"strconv"

	"github.com/vela-web/vela/http/mime"
	"github.com/vela-web/vela/http/status"
)

func init() {
	Register("Content-Length", func() Header { return new(ContentLength) })
	Register("Content-Type", func() Header { return new(ContentType) })
}

// ContentLength is the typed form of the Content-Length header.
type ContentLength struct {
	Length int
}

func (h *ContentLength) Name() string {
	return "Content-Length"
}

func (h *ContentLength) ParseRaw(value []byte) error {
	i := 0
	for i < len(value) && value[i] == ' ' {
		i++
	}

	start := i
	length := 0
	for ; i < len(value); i++ {
		char := value[i]
		if char < '0' || char > '9' {
			break
		}

		length = length*10 + int(char-'0')
	}

	if i == start {
		return status.NewError(status.BadRequest, "Invalid Content-Length header")
	}

	for i < len(value) && value[i] == ' ' {
		i++
	}

	if i != len(value) {
		return status.NewError(status.BadRequest, "Invalid Content-Length header")
	}

	h.Length = length
	return nil
}

func (h *ContentLength) AppendValue(dst []byte) []byte {
	return strconv.AppendInt(dst, int64(h.Length), 10)
}

// ContentType is the typed form of the Content-Type header.
type ContentType struct {
	Mime mime.MIME
}

func (h *ContentType) Name() string {
	return "Content-Type"
}

func (h *ContentType) ParseRaw(value []byte) error {
	h.Mime = string(value)
	return nil
}

func (h *ContentType) AppendValue(dst []byte) []byte {
	return append(dst, h.Mime...)
}

// SetMime overrides the media type in place.
func (h *ContentType) SetMime(m mime.MIME) {
	h.Mime = m
}
