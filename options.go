package wschat

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hilthontt/wschat/internal/infrastructure/ratelimiter"
)

const tracerName = "github.com/hilthontt/wschat"

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger sets the logger for engine diagnostics. Defaults to a
// no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.base = logger
		}
	}
}

// WithTransport substitutes the underlying connection, e.g. an
// in-memory transport in tests. Defaults to a websocket dialed against
// the client address.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHandshakeTimeout bounds the websocket handshake of the default
// transport.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.handshakeTimeout = d
	}
}

// WithSendLimit caps outgoing chat messages per room to limit sends
// within each window. Exceeding the cap makes SendMessage fail with a
// *SendLimitError instead of reaching the server. Disabled by default.
func WithSendLimit(limit int, window time.Duration) Option {
	return func(c *Client) {
		if limit > 0 && window > 0 {
			c.limiter = ratelimiter.NewFixedWindow(limit, window)
		}
	}
}

// WithTracerProvider sets the provider used to trace correlated
// requests. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

func defaultTracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(tracerName)
}
