package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/seqsense/splatview/relay"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

const (
	msgLimitReached = "The free tier has reached its limit. Please contact support for more credits."
	msgInvalidLink  = "Invalid share link"
)

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
	outcomeTimeout  = "timeout"
	outcomeBad      = "bad_response"
	outcomeCanceled = "canceled"
)

// relayFailure maps a reconstruction error to the HTTP reply and the
// metrics outcome.
func relayFailure(err error) (status int, body errorBody, outcome string) {
	var re *relay.Error
	upstream := ""
	if errors.As(err, &re) {
		upstream = re.Message
	}
	switch {
	case errors.Is(err, relay.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, errorBody{
			Error:   "Processing timed out",
			Message: "The reconstruction service did not answer in time. Please try again.",
		}, outcomeTimeout
	case errors.Is(err, relay.ErrUpstreamRejected):
		msg := "The reconstruction service could not process this image."
		if upstream != "" {
			msg = upstream
		}
		return http.StatusUnprocessableEntity, errorBody{Error: "Image rejected", Message: msg}, outcomeRejected
	case errors.Is(err, relay.ErrBadResponse):
		return http.StatusBadGateway, errorBody{
			Error:   "Processing failed",
			Message: "The reconstruction service returned an unusable result. Please try again.",
		}, outcomeBad
	case errors.Is(err, relay.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorBody{
			Error:   "Service unavailable",
			Message: "Reconstruction is not configured on this server.",
		}, outcomeFailed
	case errors.Is(err, relay.ErrUpstream):
		return http.StatusBadGateway, errorBody{
			Error:   "Processing failed",
			Message: "The reconstruction service is unavailable. Please try again later.",
		}, outcomeFailed
	default:
		return http.StatusInternalServerError, errorBody{Error: "Processing failed"}, outcomeCanceled
	}
}
