package ws

import (
	"net/http"
	"strings"
)

// NewOriginChecker builds a CheckOrigin function for a gorilla/websocket
// Upgrader from a comma-separated allow list (the ALLOWED_ORIGINS setting).
func NewOriginChecker(allowedOrigins string) func(r *http.Request) bool {
	var allowed []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			allowed = append(allowed, o)
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// No Origin header: same-origin request or non-browser client.
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(origin, a) {
				return true
			}
		}
		return false
	}
}
