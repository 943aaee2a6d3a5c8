// Package guard decides, per navigation, whether a route renders, redirects
// to login, or redirects away from the auth forms. The request-time
// middleware and the render-time gate share one Policy so they always agree
// on the protected set and the cookie name.
package guard

import (
	"net/url"
	"strings"

	"github.com/sandeepkv93/taskgate/internal/security"
)

type State string

const (
	StateChecking    State = "checking"
	StateRedirecting State = "redirecting"
	StateAuthorized  State = "authorized"
	StatePublic      State = "public"
)

type Policy struct {
	Protected   []string
	AuthRoutes  []string
	LoginPath   string
	LandingPath string
	CookieName  string
}

func DefaultPolicy() Policy {
	return Policy{
		Protected:   []string{"/tasks", "/chat"},
		AuthRoutes:  []string{"/login", "/signup"},
		LoginPath:   "/login",
		LandingPath: "/tasks",
		CookieName:  security.SessionCookieName,
	}
}

// Decision is the outcome of one navigation check. ClearSession asks the
// caller to drop the client copy before redirecting, which keeps a stale
// cookie from bouncing between the login form and a protected page.
type Decision struct {
	State        State
	Location     string
	ClearSession bool
}

// IsProtected matches whole path segments: /tasks and /tasks/1 are
// protected, /tasksx is not.
func (p Policy) IsProtected(path string) bool {
	for _, prefix := range p.Protected {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}

func (p Policy) IsAuthRoute(path string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, r := range p.AuthRoutes {
		if path == r {
			return true
		}
	}
	return false
}

// LoginRedirect keeps "/" readable in the query value; it is legal there
// and the login handler runs the value through SafeRedirect anyway.
func (p Policy) LoginRedirect(original string) string {
	return p.LoginPath + "?redirect=" + strings.ReplaceAll(url.QueryEscape(original), "%2F", "/")
}

// Decide is the transition out of the checking state.
func (p Policy) Decide(path string, authenticated bool) Decision {
	switch {
	case p.IsProtected(path) && !authenticated:
		return Decision{State: StateRedirecting, Location: p.LoginRedirect(path), ClearSession: true}
	case p.IsAuthRoute(path) && authenticated:
		return Decision{State: StateRedirecting, Location: p.LandingPath}
	case p.IsProtected(path):
		return Decision{State: StateAuthorized}
	default:
		return Decision{State: StatePublic}
	}
}
