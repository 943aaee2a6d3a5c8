package taskctl

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskgate/internal/domain"
)

func newTasksCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "tasks", Short: "Manage your tasks"}
	cmd.AddCommand(
		newTasksListCommand(opts),
		newTasksAddCommand(opts),
		newTasksDoneCommand(opts),
		newTasksRemoveCommand(opts),
		newTasksEditCommand(opts),
	)
	return cmd
}

func newTasksListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, "tasks list", func(ctx context.Context, e *env) ([]string, error) {
				rec, err := e.authorize(ctx, "/tasks")
				if err != nil {
					return nil, err
				}
				tasks, err := e.client.ListTasks(ctx, rec.User.ID)
				if err != nil {
					return nil, e.backendFailure(ctx, err)
				}
				if len(tasks) == 0 {
					return []string{"no tasks yet"}, nil
				}
				lines := make([]string, 0, len(tasks))
				for _, t := range tasks {
					lines = append(lines, formatTask(t))
				}
				return lines, nil
			})
		},
	}
}

func newTasksAddCommand(opts *options) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			if err := checkTitle(title); err != nil {
				return err
			}
			in := domain.TaskCreate{Title: title}
			if description != "" {
				if len(description) > domain.TaskDescriptionMaxLen {
					return fmt.Errorf("description must be at most %d characters", domain.TaskDescriptionMaxLen)
				}
				in.Description = &description
			}
			return opts.run(cmd, "tasks add", func(ctx context.Context, e *env) ([]string, error) {
				rec, err := e.authorize(ctx, "/tasks")
				if err != nil {
					return nil, err
				}
				t, err := e.client.CreateTask(ctx, rec.User.ID, in)
				if err != nil {
					return nil, e.backendFailure(ctx, err)
				}
				return []string{"created " + formatTask(*t)}, nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	return cmd
}

func newTasksDoneCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task's completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, "tasks done", func(ctx context.Context, e *env) ([]string, error) {
				rec, err := e.authorize(ctx, "/tasks")
				if err != nil {
					return nil, err
				}
				t, err := e.client.ToggleComplete(ctx, rec.User.ID, id)
				if err != nil {
					return nil, e.backendFailure(ctx, err)
				}
				return []string{formatTask(*t)}, nil
			})
		},
	}
}

func newTasksRemoveCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, "tasks rm", func(ctx context.Context, e *env) ([]string, error) {
				rec, err := e.authorize(ctx, "/tasks")
				if err != nil {
					return nil, err
				}
				if err := e.client.DeleteTask(ctx, rec.User.ID, id); err != nil {
					return nil, e.backendFailure(ctx, err)
				}
				return []string{fmt.Sprintf("deleted task %d", id)}, nil
			})
		},
	}
}

func newTasksEditCommand(opts *options) *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task's title or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			var in domain.TaskUpdate
			if cmd.Flags().Changed("title") {
				t := strings.TrimSpace(title)
				if err := checkTitle(t); err != nil {
					return err
				}
				in.Title = &t
			}
			if cmd.Flags().Changed("description") {
				if len(description) > domain.TaskDescriptionMaxLen {
					return fmt.Errorf("description must be at most %d characters", domain.TaskDescriptionMaxLen)
				}
				in.Description = &description
			}
			if in.Title == nil && in.Description == nil {
				return errors.New("nothing to change: pass --title and/or --description")
			}
			return opts.run(cmd, "tasks edit", func(ctx context.Context, e *env) ([]string, error) {
				rec, err := e.authorize(ctx, "/tasks")
				if err != nil {
					return nil, err
				}
				t, err := e.client.UpdateTask(ctx, rec.User.ID, id, in)
				if err != nil {
					return nil, e.backendFailure(ctx, err)
				}
				return []string{"updated " + formatTask(*t)}, nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	return cmd
}

func newChatCommand(opts *options) *cobra.Command {
	var conversation int
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the assistant to manage tasks for you",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := strings.TrimSpace(strings.Join(args, " "))
			if msg == "" {
				return errors.New("message is required")
			}
			in := domain.ChatRequest{Message: msg}
			if conversation > 0 {
				in.ConversationID = &conversation
			}
			return opts.run(cmd, "chat", func(ctx context.Context, e *env) ([]string, error) {
				rec, err := e.authorize(ctx, "/chat")
				if err != nil {
					return nil, err
				}
				resp, err := e.client.SendChat(ctx, rec.User.ID, in)
				if err != nil {
					return nil, e.backendFailure(ctx, err)
				}
				lines := []string{resp.Response}
				for _, tc := range resp.ToolCalls {
					lines = append(lines, "tool: "+tc.ToolName)
				}
				return append(lines, fmt.Sprintf("conversation: %d", resp.ConversationID)), nil
			})
		},
	}
	cmd.Flags().IntVar(&conversation, "conversation", 0, "continue an existing conversation")
	return cmd
}

func formatTask(t domain.Task) string {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	line := fmt.Sprintf("[%s] %d  %s", mark, t.ID, t.Title)
	if t.Description != nil && *t.Description != "" {
		line += "  (" + *t.Description + ")"
	}
	return line
}

func parseTaskID(v string) (int, error) {
	id, err := strconv.Atoi(v)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", v)
	}
	return id, nil
}

func checkTitle(title string) error {
	if title == "" {
		return errors.New("title is required")
	}
	if len(title) > domain.TaskTitleMaxLen {
		return fmt.Errorf("title must be at most %d characters", domain.TaskTitleMaxLen)
	}
	return nil
}
