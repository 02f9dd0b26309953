package headers

import (
	"strings"

	"github.com/indigo-web/utils/strcomp"
)

// Header is a typed header value. Implementations parse their wire form once and
// render themselves back through AppendValue.
type Header interface {
	Name() string
	ParseRaw(value []byte) error
	AppendValue(dst []byte) []byte
}

var registry = map[string]func() Header{}

// Register binds a constructor to a header name. The registry is populated at
// init time and is read-only afterwards, so it may be consulted from any worker
// without locking.
func Register(name string, constructor func() Header) {
	registry[strings.ToLower(name)] = constructor
}

func IsRegistered(name string) bool {
	_, ok := registry[strings.ToLower(name)]
	return ok
}

// Make constructs a fresh typed header for the name. The name must be registered.
func Make(name string) Header {
	return registry[strings.ToLower(name)]()
}

type Entry struct {
	Key   string
	Typed Header // nil for raw entries
	Raw   string
}

// Value renders the entry's value. Typed entries are rendered by their own
// write operation.
func (e Entry) Value() string {
	if e.Typed != nil {
		return string(e.Typed.AppendValue(nil))
	}

	return e.Raw
}

// Collection is an ordered set of headers. Adding an entry whose canonical
// (case-insensitive) name is already present replaces the old one in place,
// which keeps re-adding during section reparse idempotent.
type Collection struct {
	entries []Entry
}

func NewCollection() *Collection {
	return &Collection{}
}

// Add inserts a typed header, replacing any present entry under the same
// canonical name.
func (c *Collection) Add(h Header) *Collection {
	return c.put(Entry{Key: h.Name(), Typed: h})
}

// AddRaw inserts a plain (name, value) pair, replacing any present entry under
// the same canonical name.
func (c *Collection) AddRaw(key, value string) *Collection {
	return c.put(Entry{Key: key, Raw: value})
}

func (c *Collection) put(e Entry) *Collection {
	for i := range c.entries {
		if strcomp.EqualFold(c.entries[i].Key, e.Key) {
			c.entries[i] = e
			return c
		}
	}

	c.entries = append(c.entries, e)
	return c
}

// Lookup returns the typed form of the header, if one was constructed for the
// name. Raw entries yield no typed form.
func (c *Collection) Lookup(name string) (Header, bool) {
	for i := range c.entries {
		if strcomp.EqualFold(c.entries[i].Key, name) {
			return c.entries[i].Typed, c.entries[i].Typed != nil
		}
	}

	return nil, false
}

// Value returns the rendered value of a header by name, regardless of whether
// it is typed or raw.
func (c *Collection) Value(name string) (string, bool) {
	for i := range c.entries {
		if strcomp.EqualFold(c.entries[i].Key, name) {
			return c.entries[i].Value(), true
		}
	}

	return "", false
}

func (c *Collection) Has(name string) bool {
	_, found := c.Value(name)
	return found
}

// ContentLength returns the value of a typed Content-Length header, if present.
func (c *Collection) ContentLength() (length int, found bool) {
	h, ok := c.Lookup("Content-Length")
	if !ok {
		return 0, false
	}

	cl, ok := h.(*ContentLength)
	if !ok {
		return 0, false
	}

	return cl.Length, true
}

// ContentType returns the typed Content-Type header, if present.
func (c *Collection) ContentType() (*ContentType, bool) {
	h, ok := c.Lookup("Content-Type")
	if !ok {
		return nil, false
	}

	ct, ok := h.(*ContentType)
	return ct, ok
}

// Expose exposes the entries in insertion order.
func (c *Collection) Expose() []Entry {
	return c.entries
}

func (c *Collection) Len() int {
	return len(c.entries)
}

// Clear all the entries. The allocated space is kept for reuse.
func (c *Collection) Clear() *Collection {
	c.entries = c.entries[:0]
	return c
}
