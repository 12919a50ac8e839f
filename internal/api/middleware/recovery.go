package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/impostorgame/internal/api/apierr"
	"github.com/mcoot/impostorgame/internal/middleware"
)

// Recovery creates panic recovery middleware for the API
// and answers with the JSON internal error envelope
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, apiPanicHandler)
}

func apiPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}
