package middleware

import (
	"fmt"
	"net"
	"net/http"

	"github.com/itchan-dev/mediadesk/shared/api"
	"github.com/itchan-dev/mediadesk/shared/middleware/ratelimiter"
	"github.com/itchan-dev/mediadesk/shared/utils"
)

// RateLimit rejects requests with 429 once the caller's bucket is empty.
// getIdentity picks the bucket key.
func RateLimit(rl *ratelimiter.KeyedLimiter, getIdentity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := getIdentity(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			if !rl.Allow(identity) {
				utils.WriteJSON(w, http.StatusTooManyRequests, api.ErrorResponse{Error: "Rate limit exceeded, try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIP extracts the client IP from RemoteAddr.
// X-Real-IP and X-Forwarded-For are not trusted.
func GetIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("invalid IP address: %s", ip)
	}
	return ip, nil
}

// CookieOrIP keys by the named cookie, falling back to the client IP for
// callers that have no cookie yet.
func CookieOrIP(name string) func(r *http.Request) (string, error) {
	return func(r *http.Request) (string, error) {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return "cookie:" + c.Value, nil
		}
		ip, err := GetIP(r)
		if err != nil {
			return "", err
		}
		return "ip:" + ip, nil
	}
}
