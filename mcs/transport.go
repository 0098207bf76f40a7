package mcs

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// defaultDialTimeout bounds the initial TCP+TLS handshake.
const defaultDialTimeout = 30 * time.Second

// Transport is the minimal capability set the session driver needs from a
// connection: connect, send (write to completion), receive (blocking, sized
// to exactly what the caller asks for), and an orderly close.
type Transport interface {
	Connect(ctx context.Context) error
	Send(data []byte) error
	Recv(buf []byte) (int, error)
	IsConnected() bool
	Close() error
}

// tlsTransport is the production Transport: a single TLS connection to an
// MCS endpoint, dialed once and reused for the life of the session.
type tlsTransport struct {
	addr string
	conn net.Conn
}

// NewTLSTransport returns a Transport that dials host:port over TLS on
// Connect.
func NewTLSTransport(host string, port int) Transport {
	return &tlsTransport{addr: fmt.Sprintf("%s:%d", host, port)}
}

func (t *tlsTransport) Connect(ctx context.Context) error {
	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: defaultDialTimeout}}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return err
	}
	t.conn = conn
	return nil
}

// Send writes data to completion. net.Conn.Write already loops internally
// until all bytes are written or an error occurs, so no retry loop is
// needed here.
func (t *tlsTransport) Send(data []byte) error {
	_, err := t.conn.Write(data)
	return err
}

func (t *tlsTransport) Recv(buf []byte) (int, error) {
	return t.conn.Read(buf)
}

func (t *tlsTransport) IsConnected() bool {
	return t.conn != nil
}

func (t *tlsTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

// transportReader adapts a Transport to io.Reader so frame.Reader can
// consume it directly.
type transportReader struct {
	t Transport
}

func (r transportReader) Read(p []byte) (int, error) {
	return r.t.Recv(p)
}
