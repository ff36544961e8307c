package controller

import (
	"errors"
	"net/http"
	"strconv"

	"hkco-server/internal/modules/telemetry/types"
	"hkco-server/internal/utils"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	invalidRequestMsg   = "Invalid request"
	updatedMsg          = "Temperature updated successfully"
)

func parseHistoryLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'limit' (expected integer)")
	}
	if n <= 0 {
		return 0, errors.New("'limit' must be > 0")
	}
	if n > maxHistoryLimit {
		return 0, errors.New("'limit' must be <= 500")
	}
	return n, nil
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	utils.WriteJSON(w, status, types.Response{Success: false, Error: msg})
}
