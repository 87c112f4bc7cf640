// Package middlewares for middleware between api and backend
package middlewares

import "net/http"

// EnableCors enables cors middleware
func EnableCors(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if setupCorsResponse(w, r) {
			return
		}
		h.ServeHTTP(w, r)
	})
}

// setupCorsResponse sets the cors headers, preflight requests are answered right away
func setupCorsResponse(w http.ResponseWriter, req *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization, Last-Event-ID")

	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return true
	}
	return false
}
