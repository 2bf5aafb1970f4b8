package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// Origins is the browser origin allow-list shared by CORS and the WebSocket
// upgrade. An empty list allows every origin; "*" does the same.
type Origins []string

func (o Origins) Allowed(origin string) bool {
	if len(o) == 0 {
		return true
	}
	for _, allowed := range o {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// CheckOrigin has the websocket.Upgrader signature. Requests without an
// Origin header do not come from a browser and are let through.
func (o Origins) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || o.Allowed(origin)
}

func CORS(origins Origins, allowCredentials bool) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return origins.Allowed(origin)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Client-Info", "Apikey"},
		ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Remaining"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	})
}
