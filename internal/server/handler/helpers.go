// Package handler holds the HTTP handlers for the public API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vaultline/artkey/internal/domain"
)

// writeJSON marshals v and writes it with the given status. A marshal
// failure falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a service error onto an HTTP status and body.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// statusFor translates the domain error set into HTTP status codes.
// Unrecognized errors become 500s.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNoAuction),
		errors.Is(err, domain.ErrCandidateGone):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrAlreadyVoted),
		errors.Is(err, domain.ErrAlreadySwiped),
		errors.Is(err, domain.ErrCandidateWon):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBidTooLow),
		errors.Is(err, domain.ErrAuctionEnded),
		errors.Is(err, domain.ErrNoRewards),
		errors.Is(err, domain.ErrTxFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotEligible),
		errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrWrongCollection):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotConfirmed):
		return http.StatusAccepted
	case errors.Is(err, domain.ErrPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON parses the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// parseListOpts extracts pagination from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{Limit: limit, Offset: offset}
}
