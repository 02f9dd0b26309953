package transport

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

func sockaddrOf(addr *net.TCPAddr) (unix.Sockaddr, int, error) {
	ip := addr.IP
	if ip == nil {
		ip = net.IPv4zero
	}

	if v4 := ip.To4(); v4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], v4)
		return sa, unix.AF_INET, nil
	}

	if v6 := ip.To16(); v6 != nil {
		sa := &unix.SockaddrInet6{Port: addr.Port}
		copy(sa.Addr[:], v6)
		return sa, unix.AF_INET6, nil
	}

	return nil, 0, fmt.Errorf("listener: unsupported address: %s", addr)
}

func addrOf(sa unix.Sockaddr) *net.TCPAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}
	default:
		return &net.TCPAddr{}
	}
}
