package middleware

import "net/http"

// BodyBytesLimit caps the request body at limit bytes. Reads past the cap
// fail with *http.MaxBytesError.
func BodyBytesLimit(limit int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
