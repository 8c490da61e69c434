package mw

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/careerdev-ai/careerdev/pkg/gateway/apierror"
	"github.com/careerdev-ai/careerdev/pkg/gateway/ratelimit"
)

// RateLimit throttles per client IP. onReject, when non-nil, is invoked for
// every rejected request.
func RateLimit(limiter *ratelimit.Limiter, onReject func(), next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retry := limiter.Allow(clientKey(r), time.Now())
		if !ok {
			if onReject != nil {
				onReject()
			}
			reqID, _ := RequestIDFrom(r.Context())
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			apierror.Write(w, &apierror.Error{
				Type:    apierror.ErrRateLimit,
				Message: "too many requests",
			}, reqID)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
