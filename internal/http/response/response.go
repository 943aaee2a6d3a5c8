package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/taskgate/internal/apperr"
)

// ErrorBody is the gateway error shape for auth routes.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// DetailBody is the error shape of the task/chat contract.
type DetailBody struct {
	Detail string `json:"detail"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.WarnContext(r.Context(), "encode response", "error", err)
	}
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message, field string) {
	JSON(w, r, status, ErrorBody{Error: message, Code: code, Field: field})
}

func Detail(w http.ResponseWriter, r *http.Request, status int, detail string) {
	JSON(w, r, status, DetailBody{Detail: detail})
}

// AppError writes err as an ErrorBody using its taxonomy status. Errors
// outside the taxonomy become a generic 500.
func AppError(w http.ResponseWriter, r *http.Request, err error) {
	status, ae := statusOf(err)
	Error(w, r, status, string(ae.Kind), ae.Detail, ae.Field)
}

// AppDetail is AppError for routes speaking the {detail} contract.
func AppDetail(w http.ResponseWriter, r *http.Request, err error) {
	status, ae := statusOf(err)
	Detail(w, r, status, ae.Detail)
}

func statusOf(err error) (int, *apperr.Error) {
	ae := apperr.From(err)
	if ae == nil {
		ae = apperr.Internal(nil)
	}
	status := ae.Status
	if status == 0 {
		// Network failures reaching the backend surface as a bad gateway.
		status = http.StatusBadGateway
	}
	return status, ae
}
