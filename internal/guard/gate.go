package guard

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/observability"
	"github.com/sandeepkv93/taskgate/internal/security"
	"github.com/sandeepkv93/taskgate/internal/session"
)

// ErrNavigationCancelled means the navigation was abandoned before its
// decision was applied. Nothing was rendered or redirected.
var ErrNavigationCancelled = errors.New("navigation cancelled")

// Gate is the render-time layer. Unlike the middleware it parses the stored
// record and checks its expiry.
type Gate struct {
	policy  Policy
	cookies *security.CookieManager
	now     func() time.Time
}

func NewGate(policy Policy, cookies *security.CookieManager) *Gate {
	return &Gate{policy: policy, cookies: cookies, now: time.Now}
}

func (g *Gate) Policy() Policy { return g.policy }

// Navigation is one pass through the state machine for a single path.
type Navigation struct {
	gate *Gate
	path string

	mu       sync.Mutex
	state    State
	decision Decision
}

func (g *Gate) Begin(path string) *Navigation {
	return &Navigation{gate: g, path: path, state: StateChecking}
}

func (n *Navigation) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Resolve reads the store and computes the decision without acting on it.
func (n *Navigation) Resolve(ctx context.Context, store session.Store) (Decision, error) {
	if ctx.Err() != nil {
		return Decision{State: StateChecking}, ErrNavigationCancelled
	}
	_, ok := session.Current(ctx, store, n.gate.now())
	d := n.gate.policy.Decide(n.path, ok)
	n.mu.Lock()
	n.decision = d
	n.mu.Unlock()
	return d, nil
}

// Apply commits the resolved decision. render is called only for
// authorized and public outcomes. An authorized decision is re-checked
// against the store first, so a session cleared after Resolve never
// reaches render.
func (n *Navigation) Apply(ctx context.Context, store session.Store, render func(*domain.SessionRecord)) (Decision, error) {
	if ctx.Err() != nil {
		return Decision{State: StateChecking}, ErrNavigationCancelled
	}
	n.mu.Lock()
	d := n.decision
	n.mu.Unlock()
	if d.State == "" || d.State == StateChecking {
		var err error
		if d, err = n.Resolve(ctx, store); err != nil {
			return d, err
		}
	}

	var rec *domain.SessionRecord
	switch d.State {
	case StateAuthorized:
		current, ok := session.Current(ctx, store, n.gate.now())
		if !ok {
			d = n.gate.policy.Decide(n.path, false)
		} else {
			rec = current
		}
	case StatePublic:
		rec, _ = session.Current(ctx, store, n.gate.now())
	}

	n.mu.Lock()
	n.state = d.State
	n.decision = d
	n.mu.Unlock()
	observability.RecordGuardDecision(ctx, "render", string(d.State))

	if render != nil && (d.State == StateAuthorized || d.State == StatePublic) {
		render(rec)
	}
	return d, nil
}

// Check runs the checking transition for path against store.
func (g *Gate) Check(ctx context.Context, store session.Store, path string) (Decision, error) {
	return g.Begin(path).Resolve(ctx, store)
}

// Serve wraps a page handler. The handler runs only for authorized or
// public outcomes, with the current record available through RecordFrom.
func (g *Gate) Serve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		store := session.NewCookieStore(g.cookies, w, r)
		nav := g.Begin(r.URL.Path)
		d, err := nav.Apply(ctx, store, func(rec *domain.SessionRecord) {
			next.ServeHTTP(w, r.WithContext(WithRecord(ctx, rec)))
		})
		if err != nil {
			return
		}
		if d.State != StateRedirecting {
			return
		}
		if d.ClearSession {
			_ = store.Clear(ctx)
		}
		http.Redirect(w, r, d.Location, http.StatusFound)
	})
}

type recordKey struct{}

func WithRecord(ctx context.Context, rec *domain.SessionRecord) context.Context {
	return context.WithValue(ctx, recordKey{}, rec)
}

// RecordFrom returns the record the gate authorized the request with.
func RecordFrom(ctx context.Context) (*domain.SessionRecord, bool) {
	rec, ok := ctx.Value(recordKey{}).(*domain.SessionRecord)
	return rec, ok && rec != nil
}
