package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"worldbuilder-agent/internal/app"
	"worldbuilder-agent/internal/config"
	"worldbuilder-agent/internal/logging"
	"worldbuilder-agent/internal/registry"
	"worldbuilder-agent/internal/session"
	"worldbuilder-agent/internal/usecase"
)

type rootOptions struct {
	configPath string
	threadID   int64
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "worldbuilder",
		Short: "Route world-building requests to specialised capabilities",
		Long: `worldbuilder analyses each request, asks a language model which
world-building capability fits best (geography, culture, lore, economics or
politics) and lets that capability answer. Malformed routing answers fall back
to keyword scoring.

Without a subcommand an interactive session starts. Type 'quit', 'exit' or an
empty line to end it.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App, logger *zap.Logger) error {
				s, err := session.New(a.Service, in, out, opts.threadID, logger)
				if err != nil {
					return err
				}
				return s.Run(ctx)
			})
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().Int64VarP(&opts.threadID, "thread", "t", 1, "conversation thread id")

	cmd.AddCommand(newRouteCmd(opts, out), newCapabilitiesCmd(out), newAuditCmd(opts, out))
	return cmd
}

func newRouteCmd(opts *rootOptions, out io.Writer) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "route <request>",
		Short: "Route a single request and print the answer",
		Example: `  worldbuilder route "Tell me about a desert trading empire"
  worldbuilder route --json "Describe the rocky mountain terrain"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.Join(args, " ")
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App, _ *zap.Logger) error {
				res, err := a.Service.Process(ctx, usecase.RouteInput{Input: input, ThreadID: opts.threadID})
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}
				session.NewRenderer(out).Turn(input, res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full routing result as JSON")
	return cmd
}

func newCapabilitiesCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "List the registered capabilities",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			reg := registry.Builtin()
			def, _ := reg.Default()
			session.NewRenderer(out).Capabilities(reg.List(), def.Name)
			return nil
		},
	}
}

func newAuditCmd(opts *rootOptions, out io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recorded turns for a thread from the audit table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			audit, err := app.OpenAudit(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			meta, ok, err := audit.GetThreadMeta(cmd.Context(), opts.threadID)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(out, "No turns recorded for thread %d.\n", opts.threadID)
				return nil
			}
			turns, err := audit.ListTurns(cmd.Context(), opts.threadID, limit)
			if err != nil {
				return err
			}

			r := session.NewRenderer(out)
			r.Line(fmt.Sprintf("Thread %d: %d turns, last activity %s", meta.ThreadID, meta.Turns, meta.LastActivity))
			for _, t := range turns {
				r.Line(fmt.Sprintf("\n[%s] %s (%s)", t.CreatedAt, session.HumanizeName(t.Capability), t.Source))
				r.Line("  > " + t.Prompt)
				r.Line("  " + t.Response)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of turns to show")
	return cmd
}

// withApp loads configuration, builds the router and serves metrics while fn
// runs.
func withApp(ctx context.Context, opts *rootOptions, fn func(context.Context, *app.App, *zap.Logger) error) error {
	if opts.threadID <= 0 {
		return errors.New("--thread must be positive")
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := a.Metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
	}
	return fn(ctx, a, logger)
}
