package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// httpClient is the process-wide HTTP client, shared across calls and
// initialised lazily.
var (
	httpClientOnce sync.Once
	httpClientInst *http.Client
)

func httpClient(useLocalCertificate bool) *http.Client {
	httpClientOnce.Do(func() {
		httpClientInst = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: useLocalCertificate,
					MinVersion:         tls.VersionTLS12,
				},
			},
		}
	})
	return httpClientInst
}

// sendHTTP posts one message to the endpoint.
func (t *Transport) sendHTTP(ctx context.Context, u *url.URL, message []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(message))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", u, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := httpClient(t.config.UseLocalCertificate).Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", u, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post to %s: status %s", u, resp.Status)
	}
	return nil
}

// receiveWebSocket upgrades the endpoint to a WebSocket stream and
// yields each binary frame as one message.
func (t *Transport) receiveWebSocket(ctx context.Context, u *url.URL) (<-chan []byte, error) {
	wsURL := *u
	switch u.Scheme {
	case "http":
		wsURL.Scheme = "ws"
	case "https":
		wsURL.Scheme = "wss"
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: t.config.DialTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: t.config.UseLocalCertificate,
			MinVersion:         tls.VersionTLS12,
		},
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", wsURL.String(), err)
	}
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	conn.SetReadLimit(maxMessageSize)

	messages := make(chan []byte, 16)

	// Cancellation closes the connection, which unblocks ReadMessage.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go func() {
		defer close(messages)
		defer conn.Close()
		for {
			kind, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					t.logger.Warn("websocket read failed", "url", wsURL.String(), "error", err)
				}
				return
			}
			if kind != websocket.BinaryMessage || len(message) == 0 {
				continue
			}
			select {
			case messages <- message:
			case <-ctx.Done():
				return
			}
		}
	}()

	return messages, nil
}
