package natsclient

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/c360/cvsync/metric"
	"github.com/c360/cvsync/pkg/retry"
)

// ClientOption configures a Client in NewClient.
type ClientOption func(*Client) error

// Tuning holds the connection parameters taken from the nats config section.
// Zero fields keep the client defaults.
type Tuning struct {
	Name          string        // announced to the server, shown by nats-top
	ReconnectWait time.Duration // pause between reconnect attempts
	PingInterval  time.Duration // keepalive; a silent server is noticed after two misses
	Timeout       time.Duration // dial timeout of a single connect attempt
	DrainTimeout  time.Duration // bound on flushing pending events at shutdown
}

// WithTuning applies the non-zero fields of t.
func WithTuning(t Tuning) ClientOption {
	return func(c *Client) error {
		if t.Name != "" {
			c.clientName = t.Name
		}
		setDuration(&c.reconnectWait, t.ReconnectWait)
		setDuration(&c.pingInterval, t.PingInterval)
		setDuration(&c.timeout, t.Timeout)
		setDuration(&c.drainTimeout, t.DrainTimeout)
		return nil
	}
}

func setDuration(dst *time.Duration, d time.Duration) {
	if d > 0 {
		*dst = d
	}
}

// WithMaxReconnects bounds reconnects after a lost connection. -1 never
// gives up; 0 closes the client on the first disconnect.
func WithMaxReconnects(n int) ClientOption {
	return func(c *Client) error {
		c.maxReconnects = n
		return nil
	}
}

// WithConnectRetry sets the backoff policy of the initial connect.
func WithConnectRetry(cfg retry.Config) ClientOption {
	return func(c *Client) error {
		c.connectRetry = cfg
		return nil
	}
}

// WithCredentials authenticates with a user and password.
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithToken authenticates with a bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTLS secures the connection with cfg. A nil cfg leaves TLS off.
func WithTLS(cfg *tls.Config) ClientOption {
	return func(c *Client) error {
		c.tlsConfig = cfg
		return nil
	}
}

// WithLogger sets the client logger. Nil keeps slog.Default.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithStatusCallback is called on every connection status change. cvupdate
// feeds it into the health monitor.
func WithStatusCallback(fn func(ConnectionStatus)) ClientOption {
	return func(c *Client) error {
		c.onStatusChange = fn
		return nil
	}
}

// WithMetrics records connection status and reconnects into the registry's
// core metrics.
func WithMetrics(registry *metric.MetricsRegistry) ClientOption {
	return func(c *Client) error {
		if registry != nil {
			c.metrics = registry.CoreMetrics()
		}
		return nil
	}
}
