package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware requires the configured bearer token. Browsers cannot set
// headers on WebSocket or EventSource requests, so a ?token= query parameter
// is accepted as well.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.config.AuthToken == "" {
		return next
	}
	want := []byte(s.config.AuthToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			token = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			s.writeError(w, r, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
