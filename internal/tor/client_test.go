package tor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// socks5Server is a minimal unauthenticated SOCKS5 proxy for tests.
type socks5Server struct {
	listener net.Listener
	connects atomic.Int32
}

func newSOCKS5Server(t *testing.T) *socks5Server {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	s := &socks5Server{listener: l}
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *socks5Server) addr() string {
	return s.listener.Addr().String()
}

func (s *socks5Server) serve(conn net.Conn) {
	defer conn.Close()

	greeting := make([]byte, 2)
	if _, err := io.ReadFull(conn, greeting); err != nil {
		return
	}
	if _, err := io.ReadFull(conn, make([]byte, greeting[1])); err != nil {
		return
	}
	if _, err := conn.Write([]byte{socks5Version, socks5AuthNone}); err != nil {
		return
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	var host string
	switch header[3] {
	case 0x01:
		ip := make([]byte, 4)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	case socks5AddrTypeName:
		n := make([]byte, 1)
		if _, err := io.ReadFull(conn, n); err != nil {
			return
		}
		name := make([]byte, n[0])
		if _, err := io.ReadFull(conn, name); err != nil {
			return
		}
		host = string(name)
	default:
		return
	}
	portBytes := make([]byte, 2)
	if _, err := io.ReadFull(conn, portBytes); err != nil {
		return
	}
	s.connects.Add(1)

	if strings.HasSuffix(host, ".invalid") {
		// host unreachable
		_, _ = conn.Write([]byte{socks5Version, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return
	}
	target, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(binary.BigEndian.Uint16(portBytes))))) //nolint:noctx // test code
	if err != nil {
		// host unreachable
		_, _ = conn.Write([]byte{socks5Version, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return
	}
	defer target.Close()
	if _, err := conn.Write([]byte{socks5Version, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}); err != nil {
		return
	}

	go func() { _, _ = io.Copy(target, conn) }()
	_, _ = io.Copy(conn, target)
}

// oneShotServer accepts a single connection and runs handle on it.
func oneShotServer(t *testing.T, handle func(net.Conn)) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	return l.Addr().String()
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("valid address", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q", client.ProxyAddress())
		}
		if client.insecureTLS {
			t.Error("expected TLS verification by default")
		}
	})

	t.Run("insecure TLS option", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", time.Second, WithInsecureTLS(true))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		transport, ok := client.NewHTTPClient().Transport.(*http.Transport)
		if !ok {
			t.Fatal("expected *http.Transport")
		}
		if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
			t.Error("expected certificate verification to be disabled")
		}
	})

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()

		if _, err := NewClient("127.0.0.1", time.Second); !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"IPv4 with port", "127.0.0.1:9050", true},
		{"localhost with port", "localhost:9050", true},
		{"hostname with port", "proxy.example.com:1080", true},
		{"IPv6 with port", "[::1]:9050", true},
		{"empty string", "", false},
		{"no port", "127.0.0.1", false},
		{"empty host", ":9050", false},
		{"empty port", "127.0.0.1:", false},
		{"port zero", "127.0.0.1:0", false},
		{"port too large", "127.0.0.1:65536", false},
		{"non-numeric port", "127.0.0.1:tor", false},
		{"multiple colons", "127.0.0.1:9050:extra", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isValidProxyAddress(tt.address); got != tt.want {
				t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("configuration", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 45*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		httpClient := client.NewHTTPClient()
		if httpClient.Timeout != 45*time.Second {
			t.Errorf("expected timeout 45s, got %v", httpClient.Timeout)
		}
		transport, ok := httpClient.Transport.(*http.Transport)
		if !ok {
			t.Fatal("expected *http.Transport")
		}
		if !transport.DisableCompression {
			t.Error("expected transport compression to be disabled")
		}
		if transport.TLSClientConfig != nil {
			t.Error("expected default TLS settings")
		}
	})

	t.Run("requests go through the proxy", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "proxied")
		}))
		t.Cleanup(server.Close)

		socks := newSOCKS5Server(t)
		client, err := NewClient(socks.addr(), 5*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, nil)
		if err != nil {
			t.Fatalf("failed to build request: %v", err)
		}
		resp, err := client.NewHTTPClient().Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		if string(body) != "proxied" {
			t.Errorf("unexpected body %q", body)
		}
		if socks.connects.Load() == 0 {
			t.Error("expected the request to pass through the proxy")
		}
	})

	t.Run("stops redirect loops", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.Redirect(w, r, "/again", http.StatusFound)
		}))
		t.Cleanup(server.Close)

		client, err := NewClient(newSOCKS5Server(t).addr(), 5*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, nil)
		if err != nil {
			t.Fatalf("failed to build request: %v", err)
		}
		resp, err := client.NewHTTPClient().Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusFound {
			t.Errorf("expected the last redirect response, got %d", resp.StatusCode)
		}
		if got := hits.Load(); got != maxRedirects {
			t.Errorf("expected %d requests, got %d", maxRedirects, got)
		}
	})
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  ProxyStatus
		text    string
		wantErr error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not SOCKS5)", ErrProxyNotSOCKS5},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}
	for _, tt := range tests {
		if tt.status.String() != tt.text {
			t.Errorf("%d: String() = %q, want %q", tt.status, tt.status.String(), tt.text)
		}
		if !errors.Is(tt.status.Err(), tt.wantErr) {
			t.Errorf("%d: Err() = %v, want %v", tt.status, tt.status.Err(), tt.wantErr)
		}
	}

	if ProxyStatus(99).String() != "unknown" || ProxyStatus(99).Err() == nil {
		t.Error("expected unknown status to be reported")
	}
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	check := func(t *testing.T, addr string) ProxyStatus {
		t.Helper()
		client, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		return client.CheckConnection(t.Context())
	}

	t.Run("working SOCKS5 proxy", func(t *testing.T) {
		t.Parallel()

		socks := newSOCKS5Server(t)
		if status := check(t, socks.addr()); status != ProxyStatusOK {
			t.Errorf("expected OK, got %v", status)
		}
	})

	t.Run("nothing listening", func(t *testing.T) {
		t.Parallel()

		l, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}
		addr := l.Addr().String()
		_ = l.Close()

		if status := check(t, addr); status != ProxyStatusCannotConnect {
			t.Errorf("expected CannotConnect, got %v", status)
		}
	})

	t.Run("HTTP server instead of SOCKS5", func(t *testing.T) {
		t.Parallel()

		addr := oneShotServer(t, func(conn net.Conn) {
			_, _ = conn.Read(make([]byte, 3))
			_, _ = conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
		})
		if status := check(t, addr); status != ProxyStatusWrongType {
			t.Errorf("expected WrongType, got %v", status)
		}
	})

	t.Run("proxy requiring authentication", func(t *testing.T) {
		t.Parallel()

		addr := oneShotServer(t, func(conn net.Conn) {
			_, _ = conn.Read(make([]byte, 3))
			_, _ = conn.Write([]byte{socks5Version, 0xFF})
		})
		if status := check(t, addr); status != ProxyStatusWrongType {
			t.Errorf("expected WrongType, got %v", status)
		}
	})

	t.Run("silent server times out", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		t.Cleanup(func() { close(release) })
		addr := oneShotServer(t, func(net.Conn) { <-release })

		if status := check(t, addr); status != ProxyStatusTimeout {
			t.Errorf("expected Timeout, got %v", status)
		}
	})
}

func TestDialContext(t *testing.T) {
	t.Parallel()

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(newSOCKS5Server(t).addr(), time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		if _, err := client.DialContext(ctx, "tcp", "127.0.0.1:80"); err == nil {
			t.Error("expected error for cancelled context")
		}
	})

	t.Run("reaches target through the proxy", func(t *testing.T) {
		t.Parallel()

		target := oneShotServer(t, func(conn net.Conn) {
			_, _ = conn.Write([]byte("hello"))
		})
		socks := newSOCKS5Server(t)
		client, err := NewClient(socks.addr(), time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		conn, err := client.DialContext(t.Context(), "tcp", target)
		if err != nil {
			t.Fatalf("dial failed: %v", err)
		}
		defer conn.Close()

		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if string(buf) != "hello" {
			t.Errorf("unexpected data %q", buf)
		}
	})
}
