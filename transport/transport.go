// Package transport sends and receives sealed TSP messages over the
// recognised URL schemes: tcp, tls, http(s) for sending, with ws(s)
// upgrades on the HTTP-based schemes for receiving. One message is one
// unit: a TCP connection carries a single message, an HTTP POST body
// is a single message, a WebSocket binary frame is a single message.
//
// The transport drives the pending queue: failed sends are enqueued
// and replayed with the store's retry policy.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cvsouth/tsp-go/queue"
)

// ErrUnsupportedScheme means the URL names a scheme this transport
// cannot handle.
var ErrUnsupportedScheme = errors.New("transport: unsupported scheme")

// Config carries transport-level options.
type Config struct {
	// UseLocalCertificate accepts locally provisioned TLS
	// certificates instead of requiring the system roots; endpoint
	// identity then rests on the protocol's own signatures.
	UseLocalCertificate bool
	// RetryPolicy paces redelivery of queued messages.
	RetryPolicy queue.RetryPolicy
	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration
}

// DefaultConfig returns the standard transport options.
func DefaultConfig() Config {
	return Config{
		RetryPolicy: queue.DefaultRetryPolicy(),
		DialTimeout: 10 * time.Second,
	}
}

// Transport multiplexes the scheme-specific senders and receivers.
type Transport struct {
	config  Config
	pending *queue.MessageQueue
	logger  *slog.Logger
}

// New creates a transport with the given options.
func New(config Config, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 10 * time.Second
	}
	return &Transport{
		config:  config,
		pending: queue.NewMessageQueue(),
		logger:  logger,
	}
}

// Send delivers one sealed message to the endpoint.
func (t *Transport) Send(ctx context.Context, u *url.URL, message []byte) error {
	switch u.Scheme {
	case "tcp":
		return t.sendTCP(ctx, u, message, false)
	case "tls":
		return t.sendTCP(ctx, u, message, true)
	case "http", "https":
		return t.sendHTTP(ctx, u, message)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// Receive subscribes to the endpoint and yields incoming messages on
// the returned channel until the context is cancelled or the stream
// ends. Errors after subscription are logged, not surfaced: the
// channel simply closes.
func (t *Transport) Receive(ctx context.Context, u *url.URL) (<-chan []byte, error) {
	switch u.Scheme {
	case "tcp":
		return t.receiveTCP(ctx, u, false)
	case "tls":
		return t.receiveTCP(ctx, u, true)
	case "http", "https", "ws", "wss":
		return t.receiveWebSocket(ctx, u)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// Deliver sends a message, enqueueing it for retry when the send
// fails with a transport-level error. The returned error still
// reports the failure; the caller decides whether to wait for Flush.
func (t *Transport) Deliver(ctx context.Context, u *url.URL, message []byte) error {
	err := t.Send(ctx, u, message)
	if err != nil && !errors.Is(err, ErrUnsupportedScheme) {
		t.logger.Warn("send failed, queueing for retry", "url", u.String(), "error", err)
		t.pending.Push(u, message)
	}
	return err
}

// Pending exposes the queue of undelivered messages.
func (t *Transport) Pending() *queue.MessageQueue {
	return t.pending
}

// Flush replays the pending queue with exponential backoff, honouring
// context cancellation between attempts. Messages that exhaust their
// retry budget are dropped with a log line; delivery guarantees are
// advisory.
func (t *Transport) Flush(ctx context.Context) error {
	for {
		queued, ok := t.pending.Pop()
		if !ok {
			return nil
		}

		for attempt := uint32(0); ; attempt++ {
			if err := t.Send(ctx, queued.URL, queued.Message); err == nil {
				break
			} else if ctx.Err() != nil {
				t.pending.Push(queued.URL, queued.Message)
				return ctx.Err()
			} else {
				timeout, more := t.config.RetryPolicy.NextTimeout(attempt)
				if !more {
					t.logger.Warn("dropping message after retries",
						"url", queued.URL.String(), "queued_at", queued.CreatedAt)
					break
				}
				select {
				case <-time.After(timeout):
				case <-ctx.Done():
					t.pending.Push(queued.URL, queued.Message)
					return ctx.Err()
				}
			}
		}
	}
}
