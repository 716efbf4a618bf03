package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
)

// maxMessageSize caps a single incoming message.
const maxMessageSize = 16 * 1024 * 1024

// sendTCP dials the endpoint, writes the message and closes. One
// connection carries one message.
func (t *Transport) sendTCP(ctx context.Context, u *url.URL, message []byte, useTLS bool) error {
	dialer := &net.Dialer{Timeout: t.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.Host, err)
	}

	if useTLS {
		tlsConn := tls.Client(conn, t.tlsConfig(u.Hostname()))
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return fmt.Errorf("tls handshake with %s: %w", u.Host, err)
		}
		conn = tlsConn
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write(message); err != nil {
		return fmt.Errorf("write to %s: %w", u.Host, err)
	}
	return nil
}

// receiveTCP listens on the endpoint and yields one message per
// accepted connection.
func (t *Transport) receiveTCP(ctx context.Context, u *url.URL, useTLS bool) (<-chan []byte, error) {
	var listener net.Listener
	var err error
	if useTLS {
		cert, certErr := localCertificate()
		if certErr != nil {
			return nil, certErr
		}
		listener, err = tls.Listen("tcp", u.Host, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS13,
		})
	} else {
		listener, err = net.Listen("tcp", u.Host)
	}
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", u.Host, err)
	}

	messages := make(chan []byte, 16)

	// Cancellation closes the listener, which unblocks Accept.
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	go func() {
		defer close(messages)
		for {
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() == nil {
					t.logger.Warn("accept failed", "addr", u.Host, "error", err)
				}
				return
			}
			go t.readConn(ctx, conn, messages)
		}
	}()

	return messages, nil
}

func (t *Transport) readConn(ctx context.Context, conn net.Conn, messages chan<- []byte) {
	defer conn.Close()

	message, err := io.ReadAll(io.LimitReader(conn, maxMessageSize))
	if err != nil {
		t.logger.Warn("read failed", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	if len(message) == 0 {
		return
	}

	select {
	case messages <- message:
	case <-ctx.Done():
	}
}

// tlsConfig builds the client-side TLS configuration. With a local
// certificate in play, PKI verification is skipped: endpoint identity
// rests on the protocol's own signatures.
func (t *Transport) tlsConfig(serverName string) *tls.Config {
	return &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: t.config.UseLocalCertificate,
		MinVersion:         tls.VersionTLS12,
	}
}
