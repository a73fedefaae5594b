package kit

import "context"

// Transports a call can arrive through.
const (
	TransportHTTP = "http"
	TransportMCP  = "mcp"
)

type ctxKey int

const (
	transportKey ctxKey = iota
	requestIDKey
)

// WithTransport records the surface the call came in through.
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

// GetTransport returns the transport set on ctx, TransportHTTP when unset.
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(transportKey).(string); ok {
		return v
	}
	return TransportHTTP
}

// WithRequestID attaches a request id for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}
