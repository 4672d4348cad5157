// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/savika/savika/internal/config"
	"github.com/savika/savika/internal/credential"
	"github.com/savika/savika/internal/gateway"
	"github.com/savika/savika/internal/gateway/baas"
	"github.com/savika/savika/internal/gateway/memory"
	"github.com/savika/savika/internal/intake"
	"github.com/savika/savika/internal/profile"
	"github.com/savika/savika/internal/profile/postgres"
	"github.com/savika/savika/internal/session"
	"github.com/savika/savika/internal/xdg"
	"github.com/savika/savika/pkg/errutil"
)

const shellShutdownTimeout = 5 * time.Second

// newShellCmd creates the shell subcommand.
func newShellCmd(deps *ShellDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run the interactive credential shell",
		Long: `Run an interactive shell over the credential views. Each line is one
command; type "help" for the list. Lines are read until EOF or "quit".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShellWithDeps(cmd, deps)
		},
	}

	cmd.Flags().String("gateway", config.GatewayBaaS, "authentication provider (baas or memory)")
	cmd.Flags().String("gateway-url", "", "provider base URL")
	cmd.Flags().String("seed-file", "", "YAML accounts for the memory provider")
	cmd.Flags().String("database-url", "", "PostgreSQL URL for the profile directory")
	cmd.Flags().String("session-file", "", "session file (default $XDG_STATE_HOME/savika/session.json)")
	cmd.Flags().String("redirect-to", "", "recovery email redirect target")
	cmd.Flags().String("metrics-addr", "", "observability server address (empty disables)")

	return cmd
}

// provider is the configured gateway and what it was started with.
type provider struct {
	gateway  gateway.Gateway
	verifier gateway.RecoveryVerifier
	user     *gateway.User
	seeded   []string
}

func runShellWithDeps(cmd *cobra.Command, deps *ShellDeps) error {
	deps = deps.withDefaults(cmd.InOrStdin())

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := &syncWriter{w: cmd.OutOrStdout()}

	var mounted atomic.Bool
	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, mounted.Load, logger)
		errCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("SHELL_START_FAILED").With("component", "observability").Wrap(err)
		}
		go func() {
			for err := range errCh {
				errutil.LogError(ctx, logger, "observability server error", err)
			}
		}()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shellShutdownTimeout)
			defer cancel()
			if err := obsServer.Stop(stopCtx); err != nil {
				errutil.LogError(stopCtx, logger, "error stopping observability server", err)
			}
		}()
	}

	prov, err := openProvider(ctx, cfg, deps, logger, out)
	if err != nil {
		return err
	}

	profiles, closeProfiles, err := openProfiles(ctx, cfg, deps, prov.seeded)
	if err != nil {
		return err
	}
	defer closeProfiles()

	policy, err := cfg.RedirectPolicy()
	if err != nil {
		return err
	}
	svcCfg := intake.Config{RedirectTo: cfg.Recovery.RedirectTo, Redirects: policy}
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithOnChange(func(st session.State) { printState(out, st) }),
		session.WithRecoveryVerifier(prov.verifier),
		session.WithUser(prov.user),
	}
	if obsServer != nil {
		svcCfg.Metrics = obsServer.Metrics()
		opts = append(opts, session.WithEventRecorder(obsServer.Metrics()))
	}

	svc, err := intake.NewServiceWithLogger(prov.gateway, profiles, svcCfg, logger)
	if err != nil {
		return err
	}
	shell, err := session.New(prov.gateway, svc, opts...)
	if err != nil {
		return err
	}
	if err := shell.Mount(); err != nil {
		return err
	}
	defer shell.Close()
	mounted.Store(true)

	printState(out, shell.State())
	return runREPL(ctx, deps.Stdin, out, shell)
}

// openProvider builds the gateway selected by cfg.
func openProvider(ctx context.Context, cfg config.Config, deps *ShellDeps, logger *slog.Logger, out io.Writer) (provider, error) {
	switch cfg.Gateway.Kind {
	case config.GatewayMemory:
		mailer := memory.MailerFunc(func(_ context.Context, email, token, _ string) error {
			_, err := fmt.Fprintf(out, "recovery code for %s: %s\n", email, token)
			return err
		})
		gw := memory.New(memory.WithMailer(mailer), memory.WithLogger(logger))
		var seeded []string
		if cfg.Gateway.SeedFile != "" {
			accounts, err := memory.LoadSeedFile(cfg.Gateway.SeedFile)
			if err != nil {
				return provider{}, err
			}
			if err := gw.Seed(ctx, accounts); err != nil {
				return provider{}, err
			}
			for _, a := range accounts {
				seeded = append(seeded, a.Email)
			}
			logger.Info("seeded memory provider", "accounts", len(accounts))
		}
		return provider{gateway: gw, verifier: gw, seeded: seeded}, nil

	default:
		path := cfg.Session.File
		if path == "" {
			var err error
			if path, err = deps.SessionFileGetter(); err != nil {
				return provider{}, err
			}
		}
		client, err := baas.New(baas.Config{
			URL:            cfg.Gateway.URL,
			AnonKey:        cfg.Gateway.AnonKey,
			Timeout:        cfg.Gateway.Timeout,
			RetryAttempts:  cfg.Gateway.Retry.Attempts,
			RetryBaseDelay: cfg.Gateway.Retry.BaseDelay,
		}, baas.WithSessionStore(baas.NewFileStore(path)), baas.WithLogger(logger))
		if err != nil {
			return provider{}, err
		}
		user, err := client.Restore(ctx)
		if err != nil {
			// A damaged session file must not block signing in again.
			errutil.LogError(ctx, logger, "session restore failed", err, "path", path)
			user = nil
		}
		return provider{gateway: client, verifier: client, user: user}, nil
	}
}

// openProfiles returns the profile directory and its cleanup func.
func openProfiles(ctx context.Context, cfg config.Config, deps *ShellDeps, seeded []string) (profile.Directory, func(), error) {
	if cfg.Profiles.DatabaseURL == "" {
		return profile.NewMemoryDirectory(seeded...), func() {}, nil
	}

	pool, err := deps.PoolFactory(ctx, cfg.Profiles.DatabaseURL)
	if err != nil {
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to profile database").Wrap(err)
	}
	dir := postgres.NewDirectory(pool)
	for _, email := range seeded {
		if err := dir.Upsert(ctx, email); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return dir, pool.Close, nil
}

// defaultSessionFile resolves the session file and makes sure its directory exists.
func defaultSessionFile() (string, error) {
	dir, err := xdg.StateDir()
	if err != nil {
		return "", err
	}
	if err := xdg.EnsureDir(dir); err != nil {
		return "", err
	}
	return xdg.SessionFile()
}

const shellHelp = `commands:
  view                                   show the current view
  go <login|register|recovery|dashboard> switch views
  login <email> <password>
  register <name> <surname> <email> <password> <confirm>
  recover <email>
  verify <email> <code>                  enter a recovery code
  reset <password> <confirm>
  strength <password>                    score a password
  whoami
  logout
  wait                                   wait for pending submissions
  quit
`

// runREPL reads commands from in until EOF, quit or ctx is done.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, shell *session.Shell) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			break
		}
		if err := execLine(ctx, out, shell, fields); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	shell.Wait()
	if err := scanner.Err(); err != nil {
		return oops.Code("SHELL_READ_FAILED").Wrap(err)
	}
	return nil
}

func execLine(ctx context.Context, out io.Writer, shell *session.Shell, fields []string) error {
	name, args := fields[0], fields[1:]
	arity := map[string]int{
		"go": 1, "login": 2, "register": 5, "recover": 1, "verify": 2, "reset": 2, "strength": 1,
	}
	if n, ok := arity[name]; ok && len(args) != n {
		return oops.Code("SHELL_USAGE").With("command", name).Errorf("%s takes %d argument(s), see help", name, n)
	}

	accepted := true
	switch name {
	case "help":
		fmt.Fprint(out, shellHelp)
	case "view":
		printState(out, shell.State())
		fmt.Fprintf(out, "form: %s\n", shell.FormState())
	case "go":
		return shell.Navigate(session.View(args[0]))
	case "login":
		accepted = shell.SubmitLogin(ctx, intake.LoginForm{Email: args[0], Password: args[1]})
	case "register":
		accepted = shell.SubmitRegistration(ctx, intake.RegistrationForm{
			Name: args[0], Surname: args[1], Email: args[2], Password: args[3], ConfirmPassword: args[4],
		})
	case "recover":
		accepted = shell.SubmitRecovery(ctx, intake.RecoveryForm{Email: args[0]})
	case "verify":
		return shell.VerifyRecovery(ctx, args[0], args[1])
	case "reset":
		accepted = shell.SubmitPasswordReset(ctx, intake.PasswordResetForm{Password: args[0], ConfirmPassword: args[1]})
	case "strength":
		printStrength(out, credential.ScorePassword(args[0]))
	case "whoami":
		if u := shell.State().User; u != nil {
			fmt.Fprintf(out, "%s <%s>\n", u.DisplayName, u.Email)
		} else {
			fmt.Fprintln(out, "not signed in")
		}
	case "logout":
		return shell.Logout(ctx)
	case "wait":
		shell.Wait()
	default:
		return oops.Code("SHELL_UNKNOWN_COMMAND").With("command", name).Errorf("unknown command %q, see help", name)
	}
	if !accepted {
		fmt.Fprintf(out, "ignored: %s is not available on the %s view or a submission is in flight\n", name, shell.State().View)
	}
	return nil
}

func printState(out io.Writer, st session.State) {
	line := "[" + string(st.View) + "]"
	if st.User != nil {
		line += " " + st.User.Email
	}
	if st.Notice != "" {
		line += " " + st.Notice
	}
	fmt.Fprintln(out, line)
}

func printStrength(out io.Writer, s credential.Strength) {
	fmt.Fprintf(out, "score %d/%d (%s)\n", s.Score, credential.MaxScore, s.Band())
	for _, d := range s.Details {
		mark := " "
		if d.Met {
			mark = "x"
		}
		fmt.Fprintf(out, "  [%s] %s\n", mark, d.Label)
	}
}

// syncWriter serializes writes from the REPL and submission callbacks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.w.Write(p)
	if err != nil {
		return n, oops.Code("SHELL_WRITE_FAILED").Wrap(err)
	}
	return n, nil
}
