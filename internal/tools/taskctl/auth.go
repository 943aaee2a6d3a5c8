package taskctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/guard"
)

type credentialFlags struct {
	email         string
	name          string
	passwordStdin bool
}

func (f *credentialFlags) bind(cmd *cobra.Command, withName bool) {
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read the password from stdin")
	if withName {
		cmd.Flags().StringVar(&f.name, "name", "", "display name")
	}
}

func newLoginCommand(opts *options) *cobra.Command {
	flags := &credentialFlags{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, flags.passwordStdin, "Password: ")
			if err != nil {
				return err
			}
			return opts.run(cmd, "login", func(ctx context.Context, e *env) ([]string, error) {
				if rec, ok := e.signedIn(ctx); ok {
					return nil, fmt.Errorf("already logged in as %s: run `taskctl logout` first", rec.User.Email)
				}
				rec, err := e.client.Login(ctx, strings.TrimSpace(flags.email), password)
				if err != nil {
					return nil, e.backendFailure(ctx, err)
				}
				return e.persist(ctx, rec)
			})
		},
	}
	flags.bind(cmd, false)
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignupCommand(opts *options) *cobra.Command {
	flags := &credentialFlags{}
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and store the session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, flags.passwordStdin, "Choose a password: ")
			if err != nil {
				return err
			}
			return opts.run(cmd, "signup", func(ctx context.Context, e *env) ([]string, error) {
				if rec, ok := e.signedIn(ctx); ok {
					return nil, fmt.Errorf("already logged in as %s: run `taskctl logout` first", rec.User.Email)
				}
				rec, err := e.client.Signup(ctx, strings.TrimSpace(flags.email), password, strings.TrimSpace(flags.name))
				if err != nil {
					return nil, e.backendFailure(ctx, err)
				}
				return e.persist(ctx, rec)
			})
		},
	}
	flags.bind(cmd, true)
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, "logout", func(ctx context.Context, e *env) ([]string, error) {
				details := []string{"logged out"}
				if _, ok := e.store.Read(ctx); ok {
					if err := e.client.Logout(ctx); err != nil {
						e.logger.Warn("server-side logout failed", "error", err)
						details = append(details, "server session not revoked; it expires on its own")
					}
				}
				if err := e.store.Clear(ctx); err != nil {
					return nil, err
				}
				return details, nil
			})
		},
	}
}

func newWhoamiCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user after checking the session with the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, "whoami", func(ctx context.Context, e *env) ([]string, error) {
				if _, ok := e.signedIn(ctx); !ok {
					return nil, errNotLoggedIn
				}
				rec, err := e.client.Session(ctx)
				if err != nil {
					return nil, e.backendFailure(ctx, err)
				}
				if rec == nil {
					_ = e.store.Clear(ctx)
					return nil, errSessionExpiry
				}
				return describe(rec), nil
			})
		},
	}
}

// signedIn asks the guard whether an auth route would bounce to the
// landing page, which is exactly "a live record is stored".
func (e *env) signedIn(ctx context.Context) (*domain.SessionRecord, bool) {
	d, err := e.gate.Check(ctx, e.store, e.gate.Policy().LoginPath)
	if err != nil || d.State != guard.StateRedirecting {
		return nil, false
	}
	rec, ok := e.store.Read(ctx)
	return rec, ok
}

func (e *env) persist(ctx context.Context, rec *domain.SessionRecord) ([]string, error) {
	if err := e.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("signed in but could not store the session: %w", err)
	}
	return append(describe(rec), "session stored in "+e.file.Path()), nil
}

func describe(rec *domain.SessionRecord) []string {
	return []string{
		fmt.Sprintf("user: %s <%s>", rec.User.Name, rec.User.Email),
		"id: " + rec.User.ID,
		"expires: " + rec.ExpiresAt.Local().Format("2006-01-02 15:04"),
	}
}

// readPassword prompts without echo on a terminal. With --password-stdin,
// or when stdin is not a terminal, the first line of stdin is used.
func readPassword(cmd *cobra.Command, fromStdin bool, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
