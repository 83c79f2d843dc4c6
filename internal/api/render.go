package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vietddude/walletguard/internal/security/engine"
	"github.com/vietddude/walletguard/internal/security/policy"
	"github.com/vietddude/walletguard/internal/security/txqueue"
)

type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

func renderJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	_ = json.NewEncoder(w).Encode(v)
}

func renderStatus(w http.ResponseWriter, status int, msg, category string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg, Category: category})
}

// renderBadRequest reports a request the API could not decode.
func renderBadRequest(w http.ResponseWriter, err error) {
	renderStatus(w, http.StatusBadRequest, err.Error(), "request")
}

func renderAuthErr(w http.ResponseWriter, err error) {
	renderStatus(w, http.StatusUnauthorized, err.Error(), "authentication")
}

// renderErr maps an engine error to its HTTP status.
func renderErr(w http.ResponseWriter, err error) {
	category := engine.Classify(err)
	renderStatus(w, statusFor(err, category), err.Error(), string(category))
}

func statusFor(err error, category engine.Category) int {
	switch {
	case errors.Is(err, engine.ErrWalletNotFound), errors.Is(err, txqueue.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidAddress),
		errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidDailyLimit),
		errors.Is(err, engine.ErrInvalidFunction),
		errors.Is(err, policy.ErrInvalidSecurityLevel):
		return http.StatusBadRequest
	}
	switch category {
	case engine.CategoryAuthorization, engine.CategoryIntegrity:
		return http.StatusForbidden
	case engine.CategoryState, engine.CategoryRecovery:
		return http.StatusConflict
	case engine.CategoryPolicy:
		return http.StatusUnprocessableEntity
	}
	slog.Error("Unexpected API error", "error", err)
	return http.StatusInternalServerError
}
