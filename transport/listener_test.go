package transport

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vela-web/vela/settings"
)

// echoHandler writes every received chunk straight back.
type echoHandler struct {
	connections    atomic.Int32
	disconnections atomic.Int32
}

func (e *echoHandler) OnConnection(*Peer) {
	e.connections.Add(1)
}

func (e *echoHandler) OnInput(data []byte, p *Peer) {
	_, _ = p.Send(data)
}

func (e *echoHandler) OnDisconnection(*Peer) {
	e.disconnections.Add(1)
}

func startListener(t *testing.T, handler Handler) *Listener {
	l, err := NewListener("127.0.0.1:0", settings.Default(), handler, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, l.Bind())

	go func() { _ = l.Run() }()
	t.Cleanup(l.Stop)

	return l
}

func TestListenerEcho(t *testing.T) {
	handler := new(echoHandler)
	l := startListener(t, handler)
	require.NotZero(t, l.Addr().Port)

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	payload := []byte("ping over the event loop")
	_, err = conn.Write(payload)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, len(payload))
	read := 0
	for read < len(payload) {
		n, err := conn.Read(buf[read:])
		require.NoError(t, err)
		read += n
	}
	require.Equal(t, payload, buf)

	require.Eventually(t, func() bool {
		return handler.connections.Load() == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, 1, l.Registry().Len())

	// closing the client side must drop the peer
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return handler.disconnections.Load() == 1 && l.Registry().Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListenerSpreadsConnections(t *testing.T) {
	s := settings.Default()
	s.TCP.Workers = 3

	handler := new(echoHandler)
	l, err := NewListener("127.0.0.1:0", s, handler, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, l.Bind())
	go func() { _ = l.Run() }()
	t.Cleanup(l.Stop)

	conns := make([]net.Conn, 0, 6)
	for i := 0; i < 6; i++ {
		conn, err := net.Dial("tcp", l.Addr().String())
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	for _, conn := range conns {
		_, err = conn.Write([]byte("hello"))
		require.NoError(t, err)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		buf := make([]byte, 5)
		read := 0
		for read < len(buf) {
			n, err := conn.Read(buf[read:])
			require.NoError(t, err)
			read += n
		}
		require.Equal(t, "hello", string(buf))
	}

	require.Equal(t, int32(6), handler.connections.Load())
}
