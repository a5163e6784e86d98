package openrouteservice

import (
	"encoding/json"
	"strings"
)

// errorResponse covers both error shapes the optimization endpoint returns:
// the solver's own {"code": 2, "error": "..."} and the gateway's
// {"error": {"code": 2003, "message": "..."}}.
type errorResponse struct {
	Code  *int            `json:"code,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
	Info  string          `json:"info,omitempty"`
}

type gatewayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// message extracts a human-readable message, or "" if none is present.
func (e *errorResponse) message() string {
	if len(e.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Error, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var gw gatewayError
	if err := json.Unmarshal(e.Error, &gw); err == nil {
		return strings.TrimSpace(gw.Message)
	}
	return ""
}

// Solver error codes reported in the response body.
const (
	solverCodeOK       = 0
	solverCodeInternal = 1
	solverCodeInput    = 2
	solverCodeRouting  = 3
)

func solverCodeText(code int) string {
	switch code {
	case solverCodeOK:
		return "ok"
	case solverCodeInternal:
		return "internal solver error"
	case solverCodeInput:
		return "input error"
	case solverCodeRouting:
		return "routing error"
	default:
		return "unknown solver error"
	}
}
