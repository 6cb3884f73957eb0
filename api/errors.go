package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warp/invoice-ledger/ledger"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind ledger.Kind) int {
	switch kind {
	case ledger.KindValidation:
		return http.StatusBadRequest
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindConcurrency:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a classified error. Store failures are reported
// without their message in Error; the cause goes to Details.
func writeError(w http.ResponseWriter, err error) {
	kind := ledger.KindOf(err)
	resp := ErrorResponse{Kind: string(kind)}

	var lerr *ledger.Error
	switch {
	case kind == ledger.KindPersistence:
		resp.Error = "Failed to process request"
		resp.Details = err.Error()
	case errors.As(err, &lerr):
		resp.Error = lerr.Message
		resp.Fields = lerr.Fields
	default:
		resp.Error = err.Error()
	}
	writeJSON(w, statusFor(kind), resp)
}

// writeBadRequest reports malformed input that never reached the domain.
func writeBadRequest(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Kind: string(ledger.KindValidation)}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, http.StatusBadRequest, resp)
}
