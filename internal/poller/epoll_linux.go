//go:build linux

package poller

import (
	"time"

	"golang.org/x/sys/unix"
)

// Epoll is a thin handle over the kernel's epoll facility. A single instance
// is owned by exactly one worker; none of the methods are safe for concurrent
// use except the epoll_ctl wrappers, which the kernel serializes itself.
type Epoll struct {
	fd  int
	raw []unix.EpollEvent
}

func NewEpoll() (*Epoll, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	return &Epoll{fd: fd}, nil
}

// AddFd registers a file descriptor with the given interest set and mode.
func (e *Epoll) AddFd(fd int, interest Interest, tag Tag, mode Mode) error {
	return e.ctl(unix.EPOLL_CTL_ADD, fd, toEpollEvents(interest, mode), tag)
}

// AddFdOneShot registers a file descriptor whose registration auto-disables
// itself after one delivery; it must be explicitly rearmed afterwards.
func (e *Epoll) AddFdOneShot(fd int, interest Interest, tag Tag, mode Mode) error {
	return e.ctl(unix.EPOLL_CTL_ADD, fd, toEpollEvents(interest, mode)|unix.EPOLLONESHOT, tag)
}

// RearmFd reconfigures an existing registration, typically to re-enable a
// one-shot one.
func (e *Epoll) RearmFd(fd int, interest Interest, tag Tag, mode Mode) error {
	return e.ctl(unix.EPOLL_CTL_MOD, fd, toEpollEvents(interest, mode), tag)
}

// RemoveFd deregisters a file descriptor.
func (e *Epoll) RemoveFd(fd int) error {
	return unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Poll blocks up to timeout collecting up to len(out) events, returning the
// count. A zero count means the timeout expired.
func (e *Epoll) Poll(out []Event, timeout time.Duration) (int, error) {
	if len(e.raw) < len(out) {
		e.raw = make([]unix.EpollEvent, len(out))
	}

	for {
		n, err := unix.EpollWait(e.fd, e.raw[:len(out)], int(timeout.Milliseconds()))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}

		for i := 0; i < n; i++ {
			out[i] = Event{
				Tag:      unpackTag(e.raw[i]),
				Interest: toInterest(e.raw[i].Events),
			}
		}

		return n, nil
	}
}

func (e *Epoll) Close() error {
	return unix.Close(e.fd)
}

func (e *Epoll) ctl(op, fd int, events uint32, tag Tag) error {
	ev := unix.EpollEvent{Events: events}
	packTag(&ev, tag)

	return unix.EpollCtl(e.fd, op, fd, &ev)
}

func toEpollEvents(interest Interest, mode Mode) (events uint32) {
	if interest.Has(Read) {
		events |= unix.EPOLLIN
	}
	if interest.Has(Write) {
		events |= unix.EPOLLOUT
	}
	if interest.Has(Hangup) {
		events |= unix.EPOLLHUP
	}
	if mode == Edge {
		events |= unix.EPOLLET
	}

	return events
}

func toInterest(events uint32) (interest Interest) {
	if events&unix.EPOLLIN != 0 {
		interest |= Read
	}
	if events&unix.EPOLLOUT != 0 {
		interest |= Write
	}
	if events&unix.EPOLLHUP != 0 {
		interest |= Hangup
	}

	return interest
}

// epoll_data is a union the Go bindings split into Fd and Pad; the full 64-bit
// tag is spread across both halves.
func packTag(ev *unix.EpollEvent, tag Tag) {
	ev.Fd = int32(uint32(tag))
	ev.Pad = int32(uint32(tag >> 32))
}

func unpackTag(ev unix.EpollEvent) Tag {
	return Tag(uint32(ev.Fd)) | Tag(uint32(ev.Pad))<<32
}
