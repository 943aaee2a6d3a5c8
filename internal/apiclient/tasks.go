package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sandeepkv93/taskgate/internal/domain"
)

func tasksPath(userID string) string {
	return "/api/" + url.PathEscape(userID) + "/tasks"
}

func (c *Client) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	var out []domain.Task
	if err := c.Do(ctx, http.MethodGet, tasksPath(userID), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Task{}
	}
	return out, nil
}

func (c *Client) CreateTask(ctx context.Context, userID string, in domain.TaskCreate) (*domain.Task, error) {
	var out domain.Task
	if err := c.Do(ctx, http.MethodPost, tasksPath(userID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTask(ctx context.Context, userID string, id int, in domain.TaskUpdate) (*domain.Task, error) {
	var out domain.Task
	if err := c.Do(ctx, http.MethodPut, fmt.Sprintf("%s/%d", tasksPath(userID), id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTask(ctx context.Context, userID string, id int) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", tasksPath(userID), id), nil, nil)
}

func (c *Client) ToggleComplete(ctx context.Context, userID string, id int) (*domain.Task, error) {
	var out domain.Task
	if err := c.Do(ctx, http.MethodPatch, fmt.Sprintf("%s/%d/complete", tasksPath(userID), id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendChat(ctx context.Context, userID string, in domain.ChatRequest) (*domain.ChatResponse, error) {
	var out domain.ChatResponse
	if err := c.Do(ctx, http.MethodPost, "/api/"+url.PathEscape(userID)+"/chat", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
