package natsclient

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cvsync/errors"
	"github.com/c360/cvsync/metric"
	"github.com/c360/cvsync/pkg/retry"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Equal(t, -1, client.maxReconnects)
	assert.Equal(t, "cvsync", client.clientName)
}

func TestNewClient_EmptyURL(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestConnectionStatus_String(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{ConnectionStatus(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestClient_OperationsRequireConnection(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, client.Publish(ctx, "cv.events.x", nil), ErrNotConnected)
	assert.ErrorIs(t, client.PublishToStream(ctx, "cv.events.x", nil), ErrNotConnected)

	_, err = client.EnsureStream(ctx, EventStreamConfig("CV_EVENTS", "", time.Hour))
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.ObjectStore(ctx, jetstream.ObjectStoreConfig{Bucket: "reports"})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.JetStream()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_ConnectGivesUpAfterRetries(t *testing.T) {
	client, err := NewClient("nats://127.0.0.1:1",
		WithTuning(Tuning{Timeout: 200 * time.Millisecond}),
		WithConnectRetry(retry.Config{MaxAttempts: 2, InitialDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond}),
	)
	require.NoError(t, err)

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StatusDisconnected, client.Status())
}

func TestClient_ConnectHonoursCancelledContext(t *testing.T) {
	client, err := NewClient("nats://127.0.0.1:1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err = client.Connect(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_StatusCallbackAndMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	var mu sync.Mutex
	var seen []ConnectionStatus
	client, err := NewClient("nats://localhost:4222",
		WithMetrics(registry),
		WithStatusCallback(func(s ConnectionStatus) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, s)
		}),
	)
	require.NoError(t, err)

	client.setStatus(StatusConnected)
	assert.Equal(t, 1.0, testutil.ToFloat64(registry.CoreMetrics().NATSConnected))

	client.setStatus(StatusConnected)
	client.handleDisconnect(nil, stderrors.New("io"))
	assert.Equal(t, 0.0, testutil.ToFloat64(registry.CoreMetrics().NATSConnected))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ConnectionStatus{StatusConnected, StatusReconnecting}, seen)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithCredentials("u", "p"), WithToken("t"))
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))
	assert.Empty(t, client.password)
	assert.Empty(t, client.token)

	err = client.Connect(context.Background())
	assert.True(t, errors.IsInvalid(err))
}

func TestClient_ConnectionOptions(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithCredentials("u", "p"))
	require.NoError(t, err)
	withAuth := len(client.buildConnectionOptions())

	client, err = NewClient("nats://localhost:4222")
	require.NoError(t, err)
	plain := len(client.buildConnectionOptions())
	assert.Equal(t, withAuth-1, plain)

	client, err = NewClient("tls://localhost:4222", WithTLS(&tls.Config{MinVersion: tls.VersionTLS12}))
	require.NoError(t, err)
	assert.Equal(t, plain+1, len(client.buildConnectionOptions()))
}

func TestClient_Tuning(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	assert.Equal(t, "cvsync", client.clientName)
	assert.Equal(t, 30*time.Second, client.pingInterval)
	assert.Equal(t, 5*time.Second, client.drainTimeout)

	client, err = NewClient("nats://localhost:4222",
		WithTuning(Tuning{Name: "cvupdate", PingInterval: 10 * time.Second, DrainTimeout: time.Second}),
		WithMaxReconnects(0),
	)
	require.NoError(t, err)
	assert.Equal(t, "cvupdate", client.clientName)
	assert.Equal(t, 10*time.Second, client.pingInterval)
	assert.Equal(t, time.Second, client.drainTimeout)
	assert.Equal(t, 5*time.Second, client.timeout, "zero keeps the default")
	assert.Equal(t, 2*time.Second, client.reconnectWait, "zero keeps the default")
	assert.Zero(t, client.maxReconnects)
}

func TestClient_ConnectReportsRetries(t *testing.T) {
	var attempts []int
	policy := retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	policy.OnRetry = func(attempt int, _ error, _ time.Duration) { attempts = append(attempts, attempt) }
	client, err := NewClient("nats://127.0.0.1:1",
		WithTuning(Tuning{Timeout: 100 * time.Millisecond}),
		WithConnectRetry(policy),
	)
	require.NoError(t, err)

	require.Error(t, client.Connect(context.Background()))
	assert.Equal(t, []int{1, 2}, attempts, "caller hook kept alongside logging")
}

func TestIsAlreadyExistsError(t *testing.T) {
	assert.False(t, isAlreadyExistsError(nil))
	assert.True(t, isAlreadyExistsError(jetstream.ErrStreamNameAlreadyInUse))
	assert.True(t, isAlreadyExistsError(stderrors.New("nats: stream name already in use")))
	assert.False(t, isAlreadyExistsError(stderrors.New("timeout")))
}
