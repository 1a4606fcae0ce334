package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

type correlationIDKey struct{}

// CorrelationIDMiddleware stamps every inbound HTTP call with a
// correlation id distinct from the orchestrator's own domain Request.ID
// (the build pipeline identity assigned by POST /v1/requests and carried
// through every eventlog.Log.Append call as executionID): this id
// identifies one HTTP call -- useful for tying a proxy's access log or a
// retried client call back to the handler that served it -- and must
// never leak into the Event Log's ordering, which is keyed on the domain
// Request.ID alone. If the caller already supplied X-Request-ID (e.g. a
// load balancer stamping its own trace id), it is reused rather than
// replaced so upstream correlation survives the hop.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Request-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", correlationID)

		ctx := context.WithValue(r.Context(), correlationIDKey{}, correlationID)
		slog.DebugContext(ctx, "http call received", "correlation_id", correlationID, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CorrelationID extracts the per-call correlation id from context. Use
// this instead of re-reading the X-Request-ID header directly: it
// returns the id CorrelationIDMiddleware already generated or normalized,
// including the generated-uuid fallback for a call that arrived without
// one.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}
