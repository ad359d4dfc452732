package api

import "net/http"

// clientMiddleware records the connecting peer's id in the request context.
// Peers that send none are identified by their first awareness update.
func (s *Server) clientMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(withClientID(r.Context(), ClientIDFromRequest(r))))
	})
}
