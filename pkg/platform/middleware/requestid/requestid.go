package requestid

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"merchant/pkg/requestcontext"
)

// Header carries the request ID in both directions.
const Header = "X-Request-ID"

const maxInboundLength = 128

// Middleware propagates an inbound X-Request-ID or mints a new one, echoes it
// on the response and stores it in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(Header))
		if id == "" || len(id) > maxInboundLength {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
