// Package taskctl is the command line client of the gateway. It keeps its
// session record in a local file and drives the same guard and API client
// the web pages use.
package taskctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sandeepkv93/taskgate/internal/apiclient"
	"github.com/sandeepkv93/taskgate/internal/apperr"
	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/guard"
	"github.com/sandeepkv93/taskgate/internal/observability"
	"github.com/sandeepkv93/taskgate/internal/session"
	"github.com/sandeepkv93/taskgate/internal/tools/common"
	"github.com/sandeepkv93/taskgate/internal/tools/ui"
)

var (
	errNotLoggedIn   = errors.New("not logged in: run `taskctl login`")
	errSessionExpiry = errors.New("session expired: run `taskctl login` again")
)

type options struct {
	configPath string
	envFile    string
	baseURL    string
	ci         bool
}

// env is everything a command needs once flags and config are resolved.
type env struct {
	cfg    Config
	file   *session.FileStore
	store  session.Store
	client *apiclient.Client
	gate   *guard.Gate
	logger *slog.Logger
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "Command line client for the task manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", DefaultConfigPath(), "path to config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "gateway base URL (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newLoginCommand(opts),
		newSignupCommand(opts),
		newLogoutCommand(opts),
		newWhoamiCommand(opts),
		newTasksCommand(opts),
		newChatCommand(opts),
	)
	return cmd
}

func (o *options) env(cmd *cobra.Command) (*env, error) {
	if err := common.LoadEnvFile(o.envFile); err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(o.configPath)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
		err = cfg.validate()
	}
	if err != nil {
		return nil, err
	}
	logger := observability.NewCLILogger(cmd.ErrOrStderr(), cfg.LogLevel)
	file := session.NewFileStore(cfg.SessionFile)
	// The guard, token source and commands read the record several times
	// per run; memory answers after the first file read.
	store := session.NewMirror(session.NewMemoryStore(), file)
	client := apiclient.New(apiclient.Options{
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout,
		Tokens:       session.TokenSource{Store: store},
		AuthEnforced: cfg.AuthEnforced,
		Logger:       logger,
	})
	return &env{
		cfg:    cfg,
		file:   file,
		store:  store,
		client: client,
		gate:   guard.NewGate(guard.DefaultPolicy(), nil),
		logger: logger,
	}, nil
}

// run resolves the environment and executes action under the progress UI,
// or directly when output is not a terminal or --ci is set.
func (o *options) run(cmd *cobra.Command, title string, action func(ctx context.Context, e *env) ([]string, error)) error {
	e, err := o.env(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	fn := func(ctx context.Context) ([]string, error) { return action(ctx, e) }

	out := cmd.OutOrStdout()
	interactive := !o.ci && isTerminal(out)
	var details []string
	if interactive {
		details, err = ui.Run(ctx, title, 2*e.cfg.Timeout+5*time.Second, fn)
	} else {
		runCtx, cancel := context.WithTimeout(ctx, 2*e.cfg.Timeout+5*time.Second)
		details, err = fn(runCtx)
		cancel()
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordToolCommandRun(ctx, "taskctl", title, status)

	switch {
	case o.ci:
		common.PrintCIResult(out, err == nil, title, details, err)
	case !interactive:
		for _, d := range details {
			fmt.Fprintln(out, d)
		}
	}
	return err
}

// authorize runs the render-time guard for path against the session file.
// A missing or expired record is cleared and reported as not logged in.
func (e *env) authorize(ctx context.Context, path string) (*domain.SessionRecord, error) {
	var rec *domain.SessionRecord
	d, err := e.gate.Begin(path).Apply(ctx, e.store, func(r *domain.SessionRecord) { rec = r })
	if err != nil {
		return nil, err
	}
	if d.State == guard.StateRedirecting {
		if d.ClearSession {
			_ = e.store.Clear(ctx)
		}
		return nil, errNotLoggedIn
	}
	return rec, nil
}

// backendFailure turns an expired backend session into a local sign-out.
func (e *env) backendFailure(ctx context.Context, err error) error {
	if errors.Is(err, apperr.ErrAuthExpired) {
		if clearErr := e.store.Clear(ctx); clearErr != nil {
			e.logger.Warn("clear session file", "error", clearErr)
		}
		return errSessionExpiry
	}
	if ae := apperr.From(err); ae != nil {
		return errors.New(ae.Detail)
	}
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
