package clients

import "context"

const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID tags ctx so outgoing API calls carry the inbound request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
