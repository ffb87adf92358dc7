package instrument

import "context"

type correlationKey struct{}

// CorrelationHeader is the HTTP and message header carrying the correlation ID.
const CorrelationHeader = "X-Correlation-ID"

// SetCorrelationID returns a child context carrying id.
func SetCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// GetCorrelationID returns the ID stored by SetCorrelationID, or "".
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
