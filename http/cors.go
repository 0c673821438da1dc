package http

import (
	"net/http"

	"github.com/rs/cors"
)

var corsHandler = cors.AllowAll()

// HandleWithCORS allows cross origin requests from any origin on the given
// handler and answers preflight requests.
func HandleWithCORS(h http.Handler) http.Handler {
	return corsHandler.Handler(h)
}
