package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/taskgate/internal/apiclient"
	"github.com/sandeepkv93/taskgate/internal/apperr"
	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/http/response"
	"github.com/sandeepkv93/taskgate/internal/security"
	"github.com/sandeepkv93/taskgate/internal/service"
	"github.com/sandeepkv93/taskgate/internal/session"
)

type recordingBackend struct {
	TaskBackend
	created  []domain.TaskCreate
	deleted  []int
	toggled  []int
	listErr  error
	chatSeen []domain.ChatRequest
}

func (b *recordingBackend) ListTasks(_ context.Context, userID string) ([]domain.Task, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return []domain.Task{{ID: 1, UserID: userID, Title: "one"}}, nil
}

func (b *recordingBackend) CreateTask(_ context.Context, userID string, in domain.TaskCreate) (*domain.Task, error) {
	b.created = append(b.created, in)
	return &domain.Task{ID: 2, UserID: userID, Title: in.Title, Description: in.Description}, nil
}

func (b *recordingBackend) DeleteTask(_ context.Context, _ string, id int) error {
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *recordingBackend) ToggleComplete(_ context.Context, userID string, id int) (*domain.Task, error) {
	b.toggled = append(b.toggled, id)
	return &domain.Task{ID: id, UserID: userID, Completed: true}, nil
}

func (b *recordingBackend) SendChat(_ context.Context, _ string, in domain.ChatRequest) (*domain.ChatResponse, error) {
	b.chatSeen = append(b.chatSeen, in)
	return &domain.ChatResponse{ConversationID: 9, Response: "done"}, nil
}

// newTaskRouter mounts the proxy the way the router does, with a fixed
// principal standing in for the session middleware.
func newTaskRouter(backend TaskBackend, userID string) http.Handler {
	h := NewTaskHandler(backend)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != "" {
				p := &session.Principal{User: domain.Identity{ID: userID}, SessionID: "s-1", ExpiresAt: time.Now().Add(time.Hour)}
				req = req.WithContext(session.WithPrincipal(req.Context(), p))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/{userId}", func(r chi.Router) {
		r.Get("/tasks", h.List)
		r.Post("/tasks", h.Create)
		r.Put("/tasks/{id}", h.Update)
		r.Delete("/tasks/{id}", h.Delete)
		r.Patch("/tasks/{id}/complete", h.ToggleComplete)
		r.Post("/chat", h.Chat)
	})
	return r
}

func decodeDetail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body response.DetailBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode detail: %v body=%s", err, rr.Body.String())
	}
	return body.Detail
}

func TestTaskProxyRejectsOtherUsers(t *testing.T) {
	backend := &recordingBackend{}
	router := newTaskRouter(backend, "u-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/u-2/tasks/5", nil))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if decodeDetail(t, rr) == "" {
		t.Fatal("expected detail message")
	}
	if len(backend.deleted) != 0 {
		t.Fatal("backend must not be called for another user's path")
	}
}

func TestTaskProxyWithoutPrincipalIs401(t *testing.T) {
	rr := httptest.NewRecorder()
	newTaskRouter(&recordingBackend{}, "").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/u-1/tasks", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatalf("expected WWW-Authenticate header, got %q", rr.Header().Get("WWW-Authenticate"))
	}
}

func TestTaskProxyForwardsOperations(t *testing.T) {
	backend := &recordingBackend{}
	router := newTaskRouter(backend, "u-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/u-1/tasks", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"title":"one"`) {
		t.Fatalf("list: %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/u-1/tasks", strings.NewReader(`{"title":"  write docs  "}`)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	if len(backend.created) != 1 || backend.created[0].Title != "write docs" {
		t.Fatalf("expected trimmed title forwarded, got %+v", backend.created)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/api/u-1/tasks/3/complete", nil))
	if rr.Code != http.StatusOK || len(backend.toggled) != 1 || backend.toggled[0] != 3 {
		t.Fatalf("toggle: %d %v", rr.Code, backend.toggled)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/u-1/tasks/3", nil))
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Fatalf("delete: %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/u-1/chat", strings.NewReader(`{"message":"add milk"}`)))
	if rr.Code != http.StatusOK || len(backend.chatSeen) != 1 {
		t.Fatalf("chat: %d %s", rr.Code, rr.Body.String())
	}
}

func TestTaskProxyValidation(t *testing.T) {
	router := newTaskRouter(&recordingBackend{}, "u-1")
	long := strings.Repeat("x", domain.TaskTitleMaxLen+1)
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"empty title", http.MethodPost, "/api/u-1/tasks", `{"title":"   "}`},
		{"long title", http.MethodPost, "/api/u-1/tasks", `{"title":"` + long + `"}`},
		{"bad json", http.MethodPost, "/api/u-1/tasks", `{`},
		{"bad id", http.MethodPut, "/api/u-1/tasks/abc", `{"title":"x"}`},
		{"empty update title", http.MethodPut, "/api/u-1/tasks/1", `{"title":""}`},
		{"empty chat", http.MethodPost, "/api/u-1/chat", `{"message":" "}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			if decodeDetail(t, rr) == "" {
				t.Fatal("expected detail")
			}
		})
	}
}

func TestTaskProxyMapsBackendErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		wantHeader bool
	}{
		{"auth expired", apperr.AuthExpired(""), http.StatusUnauthorized, true},
		{"network", apperr.Network(nil), http.StatusBadGateway, false},
		{"not found", apperr.Server(http.StatusNotFound, "Task not found"), http.StatusNotFound, false},
		{"backend 401 without enforcement", apperr.Server(http.StatusUnauthorized, "ordinary 401"), http.StatusBadGateway, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			newTaskRouter(&recordingBackend{listErr: tc.err}, "u-1").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/u-1/tasks", nil))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if got := rr.Header().Get("WWW-Authenticate") != ""; got != tc.wantHeader {
				t.Fatalf("unexpected WWW-Authenticate presence %v", got)
			}
			if decodeDetail(t, rr) != apperr.From(tc.err).Detail {
				t.Fatalf("unexpected detail %q", decodeDetail(t, rr))
			}
		})
	}
}

// A backend 401 while auth enforcement is off must not read as an expired
// session to a client of the gateway that does enforce it.
func TestTaskProxyUnenforcedBackend401DoesNotExpireCallerSession(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"ordinary 401"}`))
	}))
	defer backend.Close()

	tokens := service.NewTokenService(security.NewBackendTokenIssuer("taskgate", "abcdefghijklmnopqrstuvwxyz123456", 15*time.Minute))
	upstream := apiclient.New(apiclient.Options{
		BaseURL:      backend.URL,
		Tokens:       tokens,
		AuthEnforced: false,
		AuthBackoff:  time.Millisecond,
	})
	gateway := httptest.NewServer(newTaskRouter(upstream, "u-1"))
	defer gateway.Close()

	cli := apiclient.New(apiclient.Options{
		BaseURL:      gateway.URL,
		Tokens:       apiclient.TokenFunc(func(context.Context) (string, error) { return "tok", nil }),
		AuthEnforced: true,
		AuthBackoff:  time.Millisecond,
	})
	_, err := cli.ListTasks(context.Background(), "u-1")
	if apperr.KindOf(err) == apperr.KindAuthExpired {
		t.Fatalf("backend 401 surfaced as an expired session: %v", err)
	}
	ae := apperr.From(err)
	if ae == nil || ae.Status != http.StatusBadGateway || ae.Detail != "ordinary 401" {
		t.Fatalf("expected 502 with backend detail, got %+v", ae)
	}
}
