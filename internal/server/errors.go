package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/JGibbsWork/lifestack/internal/sources"
)

// writeErr maps adapter errors onto HTTP responses. Upstream trouble is
// a 502 from this gateway's point of view; only bad requests are 400
// and only our own failures are 500.
func writeErr(w http.ResponseWriter, err error) {
	var verr *sources.ValidationError
	if errors.As(err, &verr) {
		respond(w, http.StatusBadRequest, map[string]any{
			"error": verr.Error(),
			"field": verr.Field,
		})
		return
	}

	var aerr *sources.AuthError
	if errors.As(err, &aerr) {
		respond(w, http.StatusBadGateway, map[string]any{
			"error":      aerr.Error(),
			"error_type": "needs_reauthorization",
			"service":    aerr.Service,
		})
		return
	}

	var rerr *sources.RateLimitError
	if errors.As(err, &rerr) {
		respond(w, http.StatusBadGateway, map[string]any{
			"error":       rerr.Error(),
			"error_type":  "rate_limited",
			"service":     rerr.Service,
			"retry_after": int(rerr.RetryAfter.Seconds()),
		})
		return
	}

	var terr *sources.TransientError
	if errors.As(err, &terr) {
		respond(w, http.StatusBadGateway, map[string]any{
			"error":   terr.Error(),
			"service": terr.Service,
		})
		return
	}

	log.Printf("internal error: %v", err)
	respond(w, http.StatusInternalServerError, map[string]any{
		"error": err.Error(),
	})
}
