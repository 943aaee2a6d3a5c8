package handler

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sandeepkv93/taskgate/internal/apperr"
	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/guard"
	"github.com/sandeepkv93/taskgate/internal/security"
	"github.com/sandeepkv93/taskgate/internal/service"
	"github.com/sandeepkv93/taskgate/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = map[string]*template.Template{}

func init() {
	for _, name := range []string{"home", "login", "signup", "tasks", "chat"} {
		pageTemplates[name] = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
}

var formErrors = map[string]string{
	string(apperr.KindInvalidCredentials): apperr.InvalidCredentialsDetail,
	string(apperr.KindEmailTaken):         apperr.EmailTakenDetail,
	string(apperr.KindValidation):         "Please check the form and try again.",
	string(apperr.KindServer):             "Something went wrong. Please try again.",
}

type pageData struct {
	Title          string
	User           *domain.Identity
	Error          string
	Redirect       string
	Retry          string
	Tasks          []domain.Task
	Reply          *domain.ChatResponse
	ConversationID int
}

// PageHandler renders the server-side pages. It runs behind guard.Gate, so
// protected pages only execute with a client record present; they still
// revalidate it before calling the backend.
type PageHandler struct {
	backend   TaskBackend
	sessions  service.SessionValidator
	cookieMgr *security.CookieManager
	policy    guard.Policy
}

func NewPageHandler(backend TaskBackend, sessions service.SessionValidator, cookieMgr *security.CookieManager, policy guard.Policy) *PageHandler {
	return &PageHandler{backend: backend, sessions: sessions, cookieMgr: cookieMgr, policy: policy}
}

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "home", pageData{Title: "Home", User: currentUser(r)})
}

func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", formPage(r, "Log in"))
}

func (h *PageHandler) Signup(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup", formPage(r, "Sign up"))
}

func (h *PageHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	ctx, p, ok := h.authorize(w, r)
	if !ok {
		return
	}
	data := pageData{Title: "Tasks", User: &p.User}
	tasks, err := h.backend.ListTasks(ctx, p.User.ID)
	if err != nil {
		h.backendFailure(w, r, data, "tasks", err)
		return
	}
	data.Tasks = tasks
	h.render(w, r, http.StatusOK, "tasks", data)
}

// CreateTask is the no-script form target on the tasks page.
func (h *PageHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx, p, ok := h.authorize(w, r)
	if !ok {
		return
	}
	data := pageData{Title: "Tasks", User: &p.User}
	if err := r.ParseForm(); err != nil {
		data.Error = "invalid form"
		h.render(w, r, http.StatusBadRequest, "tasks", data)
		return
	}
	in := domain.TaskCreate{Title: strings.TrimSpace(r.PostForm.Get("title"))}
	if desc := strings.TrimSpace(r.PostForm.Get("description")); desc != "" {
		in.Description = &desc
	}
	if msg := validateTask(&in.Title, in.Description, true); msg != "" {
		data.Error = msg
		data.Retry = r.URL.Path
		h.render(w, r, http.StatusBadRequest, "tasks", data)
		return
	}
	if _, err := h.backend.CreateTask(ctx, p.User.ID, in); err != nil {
		h.backendFailure(w, r, data, "tasks", err)
		return
	}
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

func (h *PageHandler) Chat(w http.ResponseWriter, r *http.Request) {
	_, p, ok := h.authorize(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "chat", pageData{Title: "Chat", User: &p.User})
}

func (h *PageHandler) SendChat(w http.ResponseWriter, r *http.Request) {
	ctx, p, ok := h.authorize(w, r)
	if !ok {
		return
	}
	data := pageData{Title: "Chat", User: &p.User}
	if err := r.ParseForm(); err != nil || strings.TrimSpace(r.PostForm.Get("message")) == "" {
		data.Error = "message is required"
		h.render(w, r, http.StatusBadRequest, "chat", data)
		return
	}
	in := domain.ChatRequest{Message: strings.TrimSpace(r.PostForm.Get("message"))}
	if id, err := strconv.Atoi(r.PostForm.Get("conversation_id")); err == nil && id > 0 {
		in.ConversationID = &id
	}
	reply, err := h.backend.SendChat(ctx, p.User.ID, in)
	if err != nil {
		h.backendFailure(w, r, data, "chat", err)
		return
	}
	data.Reply = reply
	data.ConversationID = reply.ConversationID
	h.render(w, r, http.StatusOK, "chat", data)
}

// authorize revalidates the record the gate admitted. The returned context
// carries the principal for the backend token.
func (h *PageHandler) authorize(w http.ResponseWriter, r *http.Request) (context.Context, *session.Principal, bool) {
	ctx := r.Context()
	rec, ok := guard.RecordFrom(ctx)
	if !ok {
		h.expire(w, r)
		return nil, nil, false
	}
	p, err := h.sessions.ValidateServerSide(ctx, rec.Token)
	switch {
	case err == nil:
		return session.WithPrincipal(ctx, p), p, true
	case errors.Is(err, session.ErrInvalidSession):
		h.expire(w, r)
	default:
		slog.WarnContext(ctx, "page session validation failed", "error", err)
		h.render(w, r, http.StatusServiceUnavailable, "tasks", pageData{
			Title: "Unavailable",
			User:  &rec.User,
			Error: "We could not verify your session right now.",
			Retry: r.URL.Path,
		})
	}
	return nil, nil, false
}

func (h *PageHandler) backendFailure(w http.ResponseWriter, r *http.Request, data pageData, page string, err error) {
	if errors.Is(err, apperr.ErrAuthExpired) {
		h.expire(w, r)
		return
	}
	slog.WarnContext(r.Context(), "backend call failed", "page", page, "error", err)
	data.Error = apperr.From(err).Detail
	data.Retry = "/" + page
	h.render(w, r, http.StatusBadGateway, page, data)
}

// expire drops the client record and sends the user to log in again,
// remembering where they were.
func (h *PageHandler) expire(w http.ResponseWriter, r *http.Request) {
	h.cookieMgr.ClearSession(w)
	target := r.URL.Path
	if r.Method != http.MethodGet {
		target = "/" + strings.Split(strings.Trim(r.URL.Path, "/"), "/")[0]
	}
	http.Redirect(w, r, h.policy.LoginRedirect(target), http.StatusFound)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	tmpl, ok := pageTemplates[name]
	if !ok {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name+".html", data); err != nil {
		slog.ErrorContext(r.Context(), "render page", "page", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func formPage(r *http.Request, title string) pageData {
	q := r.URL.Query()
	return pageData{
		Title:    title,
		Error:    formErrors[q.Get("error")],
		Redirect: guard.SafeRedirect(q.Get("redirect"), ""),
	}
}

func currentUser(r *http.Request) *domain.Identity {
	if rec, ok := guard.RecordFrom(r.Context()); ok {
		return &rec.User
	}
	return nil
}
