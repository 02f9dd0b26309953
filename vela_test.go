package vela

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/vela-web/vela/http"
	"github.com/vela-web/vela/http/mime"
	"github.com/vela-web/vela/http/status"
	"github.com/vela-web/vela/settings"
)

func startApp(t *testing.T, s settings.Settings, handler Handler) *App {
	app := New("127.0.0.1:0").Tune(s)

	started := make(chan struct{})
	app.NotifyOnStart(func() { close(started) })

	go func() {
		_ = app.Serve(handler)
	}()
	t.Cleanup(app.Stop)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	return app
}

func dial(t *testing.T, app *App) net.Conn {
	conn, err := net.Dial("tcp", app.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// readResponse accumulates a single response: the full header section plus
// Content-Length body bytes, if announced.
func readResponse(t *testing.T, conn net.Conn) string {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var buf bytes.Buffer
	tmp := make([]byte, 1024)
	for !responseComplete(buf.Bytes()) {
		n, err := conn.Read(tmp)
		require.NoError(t, err)
		buf.Write(tmp[:n])
	}

	return buf.String()
}

func responseComplete(raw []byte) bool {
	head, body, found := bytes.Cut(raw, []byte("\r\n\r\n"))
	if !found {
		return false
	}

	for _, line := range bytes.Split(head, []byte("\r\n")) {
		name, value, ok := bytes.Cut(line, []byte(":"))
		if ok && strings.EqualFold(string(name), "Content-Length") {
			length, err := strconv.Atoi(strings.TrimSpace(string(value)))
			return err == nil && len(body) >= length
		}
	}

	return true
}

func testHandler() Handler {
	return HandlerFunc(func(request *http.Request, response *http.Response) {
		switch request.Path {
		case "/hello":
			_, _ = response.Send(status.OK, "hi", mime.Plain)
		case "/echo":
			_, _ = response.Send(status.OK, string(request.Body), mime.Plain)
		case "/panic":
			panic("boom")
		default:
			_, _ = response.Send(status.NotFound, "not found", mime.Plain)
		}
	})
}

func TestServe(t *testing.T) {
	app := startApp(t, settings.Settings{}, testHandler())

	t.Run("simple GET", func(t *testing.T) {
		conn := dial(t, app)
		_, err := conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n"))
		require.NoError(t, err)

		raw := readResponse(t, conn)
		require.True(t, strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n"))
		require.Contains(t, raw, "Content-Type: text/plain\r\n")
		require.Contains(t, raw, "Content-Length: 2\r\n")
		require.True(t, strings.HasSuffix(raw, "\r\n\r\nhi"))
	})

	t.Run("request delivered in two halves", func(t *testing.T) {
		conn := dial(t, app)
		_, err := conn.Write([]byte("GET /hel"))
		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)
		_, err = conn.Write([]byte("lo HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)

		raw := readResponse(t, conn)
		require.True(t, strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n"))
		require.True(t, strings.HasSuffix(raw, "hi"))
	})

	t.Run("POST body is echoed", func(t *testing.T) {
		conn := dial(t, app)
		_, err := conn.Write([]byte("POST /echo HTTP/1.0\r\nContent-Length: 3\r\n\r\nabc"))
		require.NoError(t, err)

		raw := readResponse(t, conn)
		require.True(t, strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n"))
		require.True(t, strings.HasSuffix(raw, "abc"))
	})

	t.Run("sequential requests on one connection", func(t *testing.T) {
		conn := dial(t, app)

		for i := 0; i < 3; i++ {
			_, err := conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n"))
			require.NoError(t, err)

			raw := readResponse(t, conn)
			require.True(t, strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n"), "request %d", i)
		}
	})

	t.Run("unknown method", func(t *testing.T) {
		conn := dial(t, app)
		_, err := conn.Write([]byte("FOO / HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)

		raw := readResponse(t, conn)
		require.True(t, strings.HasPrefix(raw, "HTTP/1.1 400 Bad Request\r\n"))
		require.True(t, strings.HasSuffix(raw, "Unknown HTTP request method"))
	})

	t.Run("invalid version", func(t *testing.T) {
		conn := dial(t, app)
		_, err := conn.Write([]byte("GET / HTTP/2.0\r\n\r\n"))
		require.NoError(t, err)

		raw := readResponse(t, conn)
		require.True(t, strings.HasPrefix(raw, "HTTP/1.1 400 Bad Request\r\n"))
		require.True(t, strings.HasSuffix(raw, "Encountered invalid HTTP version"))
	})

	t.Run("panicking handler answers 500", func(t *testing.T) {
		conn := dial(t, app)
		_, err := conn.Write([]byte("GET /panic HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)

		raw := readResponse(t, conn)
		require.True(t, strings.HasPrefix(raw, "HTTP/1.1 500 Internal Server Error\r\n"))
		require.True(t, strings.HasSuffix(raw, "boom"))
	})
}

func TestServeOversizedRequest(t *testing.T) {
	s := settings.Settings{}
	s.Parser.BufferSize = settings.Setting[uint32]{Default: 64, Maximal: 128}
	app := startApp(t, s, testHandler())

	conn := dial(t, app)
	_, err := conn.Write([]byte(fmt.Sprintf(
		"POST /echo HTTP/1.1\r\nContent-Length: 4096\r\n\r\n%s", strings.Repeat("x", 4096),
	)))
	require.NoError(t, err)

	raw := readResponse(t, conn)
	require.True(t, strings.HasPrefix(raw, "HTTP/1.1 413 Request Entity Too Large\r\n"))
}

func TestServeConcurrentConnections(t *testing.T) {
	s := settings.Settings{}
	s.TCP.Workers = 2
	app := startApp(t, s, testHandler())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			conn, err := net.Dial("tcp", app.Addr().String())
			if err != nil {
				t.Error(err)
				return
			}
			defer func() { _ = conn.Close() }()

			if _, err = conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
				t.Error(err)
				return
			}

			raw := readResponse(t, conn)
			if !strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n") {
				t.Errorf("unexpected response: %q", raw)
			}
		}()
	}

	wg.Wait()
}

func TestMetrics(t *testing.T) {
	app := startApp(t, settings.Settings{}, testHandler())
	require.Len(t, app.Metrics().Collectors(), 3)

	conn := dial(t, app)
	_, err := conn.Write([]byte("GET /hello HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	_ = readResponse(t, conn)

	require.GreaterOrEqual(t, testutil.ToFloat64(app.Metrics().ConnectionsAccepted), float64(1))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(app.Metrics().RequestsCompleted) >= 1
	}, time.Second, 10*time.Millisecond)
}
