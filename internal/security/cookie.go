package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sandeepkv93/taskgate/internal/domain"
)

const (
	SessionCookieName = "app_session"
	// SessionCookieMaxAge is the cookie lifetime ceiling in seconds (7 days).
	SessionCookieMaxAge = 604800
)

var ErrNoSessionCookie = errors.New("session cookie not present")

type CookieManager struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func NewCookieManager(domain string, secure bool, sameSite string) *CookieManager {
	mode := http.SameSiteLaxMode
	switch strings.ToLower(sameSite) {
	case "strict":
		mode = http.SameSiteStrictMode
	case "none":
		mode = http.SameSiteNoneMode
	}
	return &CookieManager{Name: SessionCookieName, Domain: domain, Secure: secure, SameSite: mode}
}

// SetSession writes the record as a URL-escaped JSON cookie. Max-Age is the
// record's remaining lifetime, capped at SessionCookieMaxAge.
func (m *CookieManager) SetSession(w http.ResponseWriter, rec *domain.SessionRecord, now time.Time) error {
	value, err := EncodeSessionRecord(rec)
	if err != nil {
		return err
	}
	remaining := rec.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return fmt.Errorf("session record already expired")
	}
	maxAge := int((remaining + time.Second - 1) / time.Second)
	if maxAge > SessionCookieMaxAge {
		maxAge = SessionCookieMaxAge
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.Name,
		Value:    value,
		Path:     "/",
		Domain:   m.Domain,
		MaxAge:   maxAge,
		Secure:   m.Secure,
		HttpOnly: true,
		SameSite: m.SameSite,
	})
	return nil
}

func (m *CookieManager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.Name,
		Value:    "",
		Path:     "/",
		Domain:   m.Domain,
		MaxAge:   -1,
		Secure:   m.Secure,
		HttpOnly: true,
		SameSite: m.SameSite,
	})
}

// ReadSession parses the session cookie. It does not check expiry.
func (m *CookieManager) ReadSession(r *http.Request) (*domain.SessionRecord, error) {
	raw := GetCookie(r, m.Name)
	if raw == "" {
		return nil, ErrNoSessionCookie
	}
	return DecodeSessionRecord(raw)
}

func EncodeSessionRecord(rec *domain.SessionRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("nil session record")
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return url.QueryEscape(string(b)), nil
}

func DecodeSessionRecord(raw string) (*domain.SessionRecord, error) {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, fmt.Errorf("unescape session cookie: %w", err)
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal([]byte(decoded), &rec); err != nil {
		return nil, fmt.Errorf("decode session cookie: %w", err)
	}
	return &rec, nil
}

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

// RequestToken resolves the session token for r. A bearer header wins over
// the cookie. The decoded cookie record is returned when the token came
// from it.
func (m *CookieManager) RequestToken(r *http.Request) (string, *domain.SessionRecord) {
	if tok := BearerToken(r); tok != "" {
		return tok, nil
	}
	rec, err := m.ReadSession(r)
	if err != nil || rec.Token == "" {
		return "", nil
	}
	return rec.Token, rec
}
