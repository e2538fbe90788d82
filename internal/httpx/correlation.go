package httpx

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// correlationKey is an unexported context key type so no other package can
// collide with or overwrite the stored value.
type correlationKey struct{}

// CorrelationIDHeader is the HTTP header used for inbound/outbound correlation IDs.
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationIDMiddleware ensures each request carries a correlation ID,
// generating a UUID v4 when the client did not supply one. The ID is placed
// in the request context and echoed on the response for tracing.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(CorrelationIDHeader)
		if cid == "" {
			cid = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), correlationKey{}, cid)
		w.Header().Set(CorrelationIDHeader, cid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID extracts the correlation ID from the context. The boolean
// reports whether a value was present.
func GetCorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok
}
