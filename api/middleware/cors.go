package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// defaultCORSOrigins covers local development and the hosted frontends when
// no explicit origin list is configured.
var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"https://auctionhub.dev",
	"https://app.auctionhub.dev",
}

// CORS applies the API's allowed origin policy.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
