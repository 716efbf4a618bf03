package transport

import (
	"context"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvsouth/tsp-go/queue"
)

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestTCPSendReceive(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	addr := freePort(t)
	u, err := url.Parse("tcp://" + addr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := tr.Receive(ctx, u)
	require.NoError(t, err)

	want := []byte("one sealed message")
	require.NoError(t, tr.Send(ctx, u, want))

	select {
	case got := <-messages:
		assert.Equal(t, want, got)
	case <-ctx.Done():
		t.Fatal("timed out waiting for the message")
	}
}

func TestTCPReceiveCancellation(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	addr := freePort(t)
	u, err := url.Parse("tcp://" + addr)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	messages, err := tr.Receive(ctx, u)
	require.NoError(t, err)

	cancel()
	select {
	case _, open := <-messages:
		assert.False(t, open, "channel must close on cancellation")
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close after cancellation")
	}
}

func TestSendUnsupportedScheme(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	u, err := url.Parse("gopher://127.0.0.1:70")
	require.NoError(t, err)
	err = tr.Send(context.Background(), u, []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestDeliverQueuesOnFailure(t *testing.T) {
	tr := New(Config{
		RetryPolicy: queue.RetryPolicy{
			MaxRetries:   1,
			InitialDelay: time.Millisecond,
			Multiplier:   1.0,
			MaxDelay:     time.Millisecond,
		},
		DialTimeout: time.Second,
	}, nil)

	// Nothing listens here: the send fails and the message queues.
	addr := freePort(t)
	u, err := url.Parse("tcp://" + addr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = tr.Deliver(ctx, u, []byte("will queue"))
	assert.Error(t, err)
	assert.Equal(t, 1, tr.Pending().Len())

	// A listener appears; Flush redelivers.
	messages, err := tr.Receive(ctx, u)
	require.NoError(t, err)
	require.NoError(t, tr.Flush(ctx))

	select {
	case got := <-messages:
		assert.Equal(t, []byte("will queue"), got)
	case <-ctx.Done():
		t.Fatal("queued message was not redelivered")
	}
	assert.True(t, tr.Pending().IsEmpty())
}
