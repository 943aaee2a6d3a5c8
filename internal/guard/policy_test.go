package guard

import "testing"

func TestPolicyRouteSets(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		path      string
		protected bool
		auth      bool
	}{
		{"/tasks", true, false},
		{"/tasks/12", true, false},
		{"/chat", true, false},
		{"/tasksx", false, false},
		{"/login", false, true},
		{"/login/", false, true},
		{"/signup", false, true},
		{"/", false, false},
		{"/api/u/tasks", false, false},
	}
	for _, tc := range tests {
		if got := p.IsProtected(tc.path); got != tc.protected {
			t.Errorf("IsProtected(%q)=%v want %v", tc.path, got, tc.protected)
		}
		if got := p.IsAuthRoute(tc.path); got != tc.auth {
			t.Errorf("IsAuthRoute(%q)=%v want %v", tc.path, got, tc.auth)
		}
	}
}

func TestPolicyDecide(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name   string
		path   string
		authed bool
		want   Decision
	}{
		{"protected anonymous", "/tasks", false, Decision{State: StateRedirecting, Location: "/login?redirect=/tasks", ClearSession: true}},
		{"protected signed in", "/tasks", true, Decision{State: StateAuthorized}},
		{"auth route signed in", "/signup", true, Decision{State: StateRedirecting, Location: "/tasks"}},
		{"auth route anonymous", "/login", false, Decision{State: StatePublic}},
		{"public", "/", true, Decision{State: StatePublic}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.Decide(tc.path, tc.authed); got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestLoginRedirectEscapesQuery(t *testing.T) {
	got := DefaultPolicy().LoginRedirect("/tasks/1?x=a&y=b")
	if got != "/login?redirect=/tasks/1%3Fx%3Da%26y%3Db" {
		t.Fatalf("unexpected redirect %q", got)
	}
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"/tasks":                "/tasks",
		"/chat?c=1":             "/chat?c=1",
		"":                      "/tasks",
		"tasks":                 "/tasks",
		"//evil.example":        "/tasks",
		"/\\evil.example":       "/tasks",
		"https://evil.example/": "/tasks",
		"/tasks\r\nLocation: x": "/tasks",
	}
	for in, want := range tests {
		if got := SafeRedirect(in, "/tasks"); got != want {
			t.Errorf("SafeRedirect(%q)=%q want %q", in, got, want)
		}
	}
}
