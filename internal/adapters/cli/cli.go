package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"invoice-agent/internal/adapters/repl"
	"invoice-agent/internal/adapters/web"
	"invoice-agent/internal/app"
	"invoice-agent/internal/bootstrap"
	"invoice-agent/internal/config"
	"invoice-agent/internal/core"
	"invoice-agent/internal/db"
	"invoice-agent/internal/jobs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Builder wires the application for one command invocation.
type Builder func(ctx context.Context, cfg config.Config, log *zap.Logger) (*bootstrap.App, error)

// Options carries the command dependencies; zero values fall back to the process defaults.
type Options struct {
	Config config.Config
	Logger *zap.Logger
	Build  Builder
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Build == nil {
		o.Build = func(ctx context.Context, cfg config.Config, log *zap.Logger) (*bootstrap.App, error) {
			return bootstrap.New(ctx, cfg, log, bootstrap.Overrides{})
		}
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	return o
}

// NewRootCommand builds the invoice-agent command tree.
func NewRootCommand(opts Options) *cobra.Command {
	opts = opts.withDefaults()
	var userID string

	root := &cobra.Command{
		Use:           "invoice-agent",
		Short:         "invoice-agent - conversational invoice management",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(opts.Stdin)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	root.PersistentFlags().StringVarP(&userID, "user", "u", "local-user", "User id the request runs as")

	withApp := func(cmd *cobra.Command, fn func(ctx context.Context, a *bootstrap.App) error) error {
		a, err := opts.Build(cmd.Context(), opts.Config, opts.Logger)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a)
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				repl.Run(ctx, a.Service, userID, bufio.NewReader(opts.Stdin), opts.Stdout)
				return nil
			})
		},
	}

	var message string
	askCmd := &cobra.Command{
		Use:   "ask",
		Short: "Send a single message and print the JSON response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("--message is required")
			}
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				resp, err := a.Service.HandleMessage(ctx, app.ChatRequest{Message: message, UserID: userID})
				if err != nil {
					return err
				}
				return printJSON(opts.Stdout, resp)
			})
		},
	}
	askCmd.Flags().StringVarP(&message, "message", "m", "", "Message to send")

	classifyCmd := &cobra.Command{
		Use:   "classify <message>",
		Short: "Show how a message would be classified and routed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				res, err := a.Service.Classify(ctx, app.ClassifyRequest{Message: strings.Join(args, " "), UserID: userID})
				if err != nil {
					return err
				}
				return printJSON(opts.Stdout, res)
			})
		},
	}

	var kind string
	nextCmd := &cobra.Command{
		Use:   "next-number",
		Short: "Preview the next invoice or estimate number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				number, err := a.Service.NextNumber(ctx, app.NextNumberRequest{
					UserID: userID,
					Kind:   core.DocumentKind(strings.ToLower(kind)),
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(opts.Stdout, number)
				return nil
			})
		},
	}
	nextCmd.Flags().StringVarP(&kind, "kind", "k", string(core.KindInvoice), "invoice or estimate")

	jobCmd := func(use, short, job, noun string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
					n, err := a.Scheduler.RunOnce(ctx, job)
					if err != nil {
						return err
					}
					fmt.Fprintf(opts.Stdout, "%d %s\n", n, noun)
					return nil
				})
			},
		}
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if opts.Config.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			if err := db.Migrate(opts.Config.DatabaseURL, opts.Logger); err != nil {
				return err
			}
			fmt.Fprintln(opts.Stdout, "Migrations applied.")
			return nil
		},
	}

	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for --user",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if opts.Config.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			token, err := web.SignToken(opts.Config.JWTSecret, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(opts.Stdout, token)
			return nil
		},
	}
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the background jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				return RunServer(ctx, a)
			})
		},
	}

	root.AddCommand(
		chatCmd, askCmd, classifyCmd, nextCmd,
		jobCmd("sweep-overdue", "Mark past-due invoices overdue", jobs.OverdueSweep, "invoice(s) marked overdue"),
		jobCmd("purge-memory", "Evict expired conversation memory", jobs.MemoryPurge, "memory entries purged"),
		migrateCmd, tokenCmd, serveCmd,
	)
	return root
}

// RunServer serves the HTTP API and runs the scheduled jobs until ctx ends.
func RunServer(ctx context.Context, a *bootstrap.App) error {
	handler := web.NewHandler(a.Service, web.Options{
		AllowedOrigins: a.Config.Origins(),
		JWTSecret:      a.Config.JWTSecret,
		RateLimitRPS:   a.Config.RateLimitRPS,
		RateLimitBurst: a.Config.RateLimitBurst,
		Metrics:        a.Metrics,
		Logger:         a.Logger,
	})
	if a.Config.JWTSecret == "" {
		a.Logger.Warn("JWT_SECRET is not set; the API accepts unauthenticated requests")
	}

	a.Scheduler.Start()
	defer a.Scheduler.Stop()
	return web.Serve(ctx, ":"+a.Config.ServerPort, handler, a.Logger)
}

// Execute runs the root command with args.
func Execute(ctx context.Context, opts Options, args []string) error {
	root := NewRootCommand(opts)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
