package apiclient

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/sandeepkv93/taskgate/internal/apperr"
)

// errorDetail extracts a human-readable message from an error response:
// a string detail, a list of validation entries, an error field, or the
// status text.
func errorDetail(resp *http.Response) string {
	body := readErrorBody(resp)
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		if d := detailText(payload.Detail); d != "" {
			return d
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return http.StatusText(resp.StatusCode)
}

func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// gatewayError decodes the {error, code, field} body the auth routes send.
func gatewayError(resp *http.Response) error {
	body := readErrorBody(resp)
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
		Field string `json:"field"`
	}
	_ = json.Unmarshal(body, &payload)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apperr.InvalidCredentials()
	case payload.Code == string(apperr.KindEmailTaken):
		return apperr.EmailTaken()
	case resp.StatusCode == http.StatusBadRequest:
		detail := payload.Error
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return apperr.Validation(payload.Field, detail)
	default:
		return apperr.Server(resp.StatusCode, payload.Error)
	}
}

func readErrorBody(resp *http.Response) []byte {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return b
}
