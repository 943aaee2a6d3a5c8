package apiclient

import (
	"context"
	"net/http"

	"github.com/sandeepkv93/taskgate/internal/domain"
)

type SessionResponse struct {
	Session *domain.SessionRecord `json:"session"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*domain.SessionRecord, error) {
	return c.authenticate(ctx, "/login", map[string]string{"email": email, "password": password})
}

func (c *Client) Signup(ctx context.Context, email, password, name string) (*domain.SessionRecord, error) {
	return c.authenticate(ctx, "/signup", map[string]string{"email": email, "password": password, "name": name})
}

func (c *Client) authenticate(ctx context.Context, path string, body map[string]string) (*domain.SessionRecord, error) {
	var out domain.SessionRecord
	if err := c.do(ctx, call{method: http.MethodPost, path: path, body: body, out: &out, public: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Session asks the gateway whether the current token is still live. A nil
// record means signed out.
func (c *Client) Session(ctx context.Context) (*domain.SessionRecord, error) {
	var out SessionResponse
	if err := c.Do(ctx, http.MethodGet, "/session", nil, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/logout", nil, nil)
}
