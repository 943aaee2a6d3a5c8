package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sandeepkv93/taskgate/internal/apperr"
	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/guard"
	"github.com/sandeepkv93/taskgate/internal/http/response"
	"github.com/sandeepkv93/taskgate/internal/observability"
	"github.com/sandeepkv93/taskgate/internal/security"
	"github.com/sandeepkv93/taskgate/internal/service"
	"github.com/sandeepkv93/taskgate/internal/session"
)

const (
	loginFieldsMessage    = "Email and password required"
	signupFieldsMessage   = "Email, password, and name required"
	loginThrottledMessage = "Too many login attempts. Try again later."
)

type AuthHandler struct {
	authSvc   service.AuthServiceInterface
	sessions  service.SessionValidator
	cookieMgr *security.CookieManager
	policy    guard.Policy
	throttle  service.LoginThrottle
	now       func() time.Time
}

func NewAuthHandler(authSvc service.AuthServiceInterface, sessions service.SessionValidator, cookieMgr *security.CookieManager, policy guard.Policy, throttle service.LoginThrottle) *AuthHandler {
	if throttle == nil {
		throttle = service.NoopLoginThrottle{}
	}
	return &AuthHandler{authSvc: authSvc, sessions: sessions, cookieMgr: cookieMgr, policy: policy, throttle: throttle, now: time.Now}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Redirect string `json:"redirect"`
}

type sessionResponse struct {
	Session *domain.SessionRecord `json:"session"`
}

type logoutResponse struct {
	Success bool `json:"success"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", status, time.Since(start))
	}()

	req, form, err := decodeCredentials(r)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.login.failed", "reason", "bad_request")
		h.fail(w, r, form, h.policy.LoginPath, "", apperr.Validation("", "Invalid request body"))
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		status = "failure"
		observability.Audit(r, "auth.login.failed", "reason", "missing_fields")
		h.fail(w, r, form, h.policy.LoginPath, req.Redirect, apperr.Validation("", loginFieldsMessage))
		return
	}

	ctx := r.Context()
	meta := requestMeta(r)
	if wait, err := h.throttle.Check(ctx, req.Email, meta.IP); err != nil {
		slog.WarnContext(ctx, "login throttle unavailable", "error", err)
	} else if wait > 0 {
		status = "throttled"
		observability.Audit(r, "auth.login.failed", "reason", "throttled")
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		h.fail(w, r, form, h.policy.LoginPath, req.Redirect, apperr.Server(http.StatusTooManyRequests, loginThrottledMessage))
		return
	}

	rec, err := h.authSvc.Login(ctx, req.Email, req.Password, meta)
	if err != nil {
		status = "failure"
		if errors.Is(err, apperr.ErrInvalidCredentials) {
			if _, tErr := h.throttle.RegisterFailure(ctx, req.Email, meta.IP); tErr != nil {
				slog.WarnContext(ctx, "login throttle unavailable", "error", tErr)
			}
		}
		observability.Audit(r, "auth.login.failed", "reason", string(apperr.KindOf(err)))
		h.fail(w, r, form, h.policy.LoginPath, req.Redirect, err)
		return
	}
	if err := h.throttle.Reset(ctx, req.Email, meta.IP); err != nil {
		slog.WarnContext(ctx, "login throttle reset failed", "error", err)
	}
	if err := h.persist(w, r, rec); err != nil {
		status = "failure"
		h.fail(w, r, form, h.policy.LoginPath, req.Redirect, apperr.Internal(err))
		return
	}
	observability.Audit(r, "auth.login.success", "user_id", rec.User.ID)
	h.succeed(w, r, form, req.Redirect, rec)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "signup", status, time.Since(start))
	}()

	signupPath := "/signup"
	req, form, err := decodeCredentials(r)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.signup.failed", "reason", "bad_request")
		h.fail(w, r, form, signupPath, "", apperr.Validation("", "Invalid request body"))
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		status = "failure"
		observability.Audit(r, "auth.signup.failed", "reason", "missing_fields")
		h.fail(w, r, form, signupPath, req.Redirect, apperr.Validation("", signupFieldsMessage))
		return
	}

	rec, err := h.authSvc.Signup(r.Context(), req.Email, req.Password, req.Name, requestMeta(r))
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.signup.failed", "reason", string(apperr.KindOf(err)))
		h.fail(w, r, form, signupPath, req.Redirect, err)
		return
	}
	if err := h.persist(w, r, rec); err != nil {
		status = "failure"
		h.fail(w, r, form, signupPath, req.Redirect, apperr.Internal(err))
		return
	}
	observability.Audit(r, "auth.signup.success", "user_id", rec.User.ID)
	h.succeed(w, r, form, req.Redirect, rec)
}

// Session reports the live session for the request, or null. It never
// fails: a lookup outage degrades to the unexpired cookie record.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, cookieRec := h.cookieMgr.RequestToken(r)
	if token == "" {
		response.JSON(w, r, http.StatusOK, sessionResponse{})
		return
	}

	p, err := h.sessions.ValidateServerSide(ctx, token)
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, sessionResponse{Session: &domain.SessionRecord{
			User:      p.User,
			Token:     token,
			ExpiresAt: p.ExpiresAt,
		}})
	case errors.Is(err, session.ErrInvalidSession):
		if cookieRec != nil {
			h.cookieMgr.ClearSession(w)
		}
		response.JSON(w, r, http.StatusOK, sessionResponse{})
	default:
		slog.WarnContext(ctx, "session lookup degraded", "error", err)
		if cookieRec != nil && cookieRec.Valid(h.now()) {
			response.JSON(w, r, http.StatusOK, sessionResponse{Session: cookieRec})
			return
		}
		response.JSON(w, r, http.StatusOK, sessionResponse{})
	}
}

// Logout revokes the server-side session when one is presented and always
// clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "logout", status, time.Since(start))
	}()

	token, _ := h.cookieMgr.RequestToken(r)
	if token != "" {
		if err := h.authSvc.Logout(r.Context(), token); err != nil {
			status = "failure"
			observability.Audit(r, "auth.logout.failed", "reason", "revoke")
			slog.WarnContext(r.Context(), "session revoke failed", "error", err)
		}
	}
	h.cookieMgr.ClearSession(w)
	observability.Audit(r, "auth.logout.success")
	if isFormPost(r) {
		http.Redirect(w, r, h.policy.LoginPath, http.StatusSeeOther)
		return
	}
	response.JSON(w, r, http.StatusOK, logoutResponse{Success: true})
}

// persist sets the cookie before any body bytes are written.
func (h *AuthHandler) persist(w http.ResponseWriter, r *http.Request, rec *domain.SessionRecord) error {
	return session.NewCookieStore(h.cookieMgr, w, r).Save(r.Context(), rec)
}

func (h *AuthHandler) succeed(w http.ResponseWriter, r *http.Request, form bool, redirect string, rec *domain.SessionRecord) {
	if form {
		http.Redirect(w, r, guard.SafeRedirect(redirect, h.policy.LandingPath), http.StatusSeeOther)
		return
	}
	response.JSON(w, r, http.StatusOK, rec)
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, form bool, page, redirect string, err error) {
	if !form {
		response.AppError(w, r, err)
		return
	}
	q := url.Values{}
	q.Set("error", string(apperr.From(err).Kind))
	if target := guard.SafeRedirect(redirect, ""); target != "" {
		q.Set("redirect", target)
	}
	http.Redirect(w, r, page+"?"+q.Encode(), http.StatusSeeOther)
}

// decodeCredentials accepts a JSON body or an HTML form post. form reports
// which one was used so the caller can answer in kind.
func decodeCredentials(r *http.Request) (credentialsRequest, bool, error) {
	var req credentialsRequest
	if isFormPost(r) {
		if err := r.ParseForm(); err != nil {
			return req, true, err
		}
		req.Email = r.PostForm.Get("email")
		req.Password = r.PostForm.Get("password")
		req.Name = r.PostForm.Get("name")
		req.Redirect = r.PostForm.Get("redirect")
		return req, true, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, false, err
	}
	return req, false, nil
}

func isFormPost(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/x-www-form-urlencoded"
}

func requestMeta(r *http.Request) domain.SessionMeta {
	return domain.SessionMeta{UserAgent: r.UserAgent(), IP: clientIP(r)}
}

func clientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return r.RemoteAddr
}
