package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/weave/internal/config"
	"github.com/vango-dev/weave/pkg/devtools"
	"github.com/vango-dev/weave/pkg/observe"
	"github.com/vango-dev/weave/pkg/store"
	"github.com/vango-dev/weave/pkg/telemetry"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an instrumented workload with devtools attached",
		Long: `Run a sample todo workload on observed collections and a store,
and serve devtools while it runs.

The devtools server exposes Prometheus metrics, the observer table,
store state and a websocket stream of flush records. When a store
directory or bucket is configured, state is restored on start and
snapshotted on shutdown.

Examples:
  weave serve
  weave serve --addr=localhost:9090 --interval=250ms
  curl localhost:7070/debug/observers`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, true)
			if err != nil {
				return err
			}
			if cfg.Path() == "" {
				warn(cmd.ErrOrStderr(), "No weave.json found, using defaults")
			}
			if addr != "" {
				cfg.Devtools.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Scheduler.Debug {
				setupLogging(cmd.ErrOrStderr(), true)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			printBanner(cmd.OutOrStdout())
			info(cmd.OutOrStdout(), "devtools: http://%s/debug/observers", cfg.Devtools.Addr)
			return runServe(ctx, cfg, interval)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Devtools listen address (default from weave.json)")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Workload tick interval")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, interval time.Duration) error {
	rt, err := newApp(cfg)
	if err != nil {
		return err
	}

	if err := rt.todos.Restore(ctx); err != nil && !stderrors.Is(err, store.ErrSnapshotNotFound) {
		rt.logger.Warn("state not restored", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.devtools.ListenAndServe(gctx, cfg.Devtools.Addr)
	})
	g.Go(func() error {
		return rt.workload.Run(gctx, interval)
	})

	err = g.Wait()

	snapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := rt.todos.Snapshot(snapCtx); serr != nil {
		rt.logger.Debug("state not saved", "error", serr)
	}

	if err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// app wires an observation, its telemetry, a store and devtools from a
// configuration.
type app struct {
	ob       *observe.Observation
	todos    *store.Store[todoState]
	workload *workload
	devtools *devtools.Server
	registry *prometheus.Registry
	logger   *slog.Logger
}

func newApp(cfg *config.Config) (*app, error) {
	logger := slog.Default().With("component", "weave")
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sched := observe.NewScheduler(
		observe.WithMaxFlushIterations(cfg.Scheduler.MaxIterations),
		observe.WithSchedulerLogger(logger.With("component", "scheduler")),
	)
	if cfg.Metrics.Enabled {
		sched.AddHook(telemetry.NewMetrics(
			telemetry.WithNamespace(cfg.Metrics.Namespace),
			telemetry.WithRegistry(registry),
		))
	}
	if cfg.Metrics.Tracing {
		sched.AddHook(telemetry.NewTracer())
	}

	ob := observe.New(
		observe.WithScheduler(sched),
		observe.WithDisabledKinds(cfg.DisabledKinds()...),
	)

	persister, err := newPersister(cfg)
	if err != nil {
		return nil, err
	}
	storeOpts := []store.Option{store.WithName("todos"), store.WithScheduler(sched)}
	if persister != nil {
		storeOpts = append(storeOpts, store.WithPersister(persister))
	}
	todos := store.New(todoState{}, storeOpts...)

	wl, err := newWorkload(ob, todos, logger)
	if err != nil {
		return nil, err
	}

	dt := devtools.New(ob,
		devtools.WithGatherer(registry),
		devtools.WithStore(todos),
		devtools.WithStreamBuffer(cfg.Devtools.StreamBuffer),
	)
	sched.AddHook(dt.Stream())

	return &app{
		ob:       ob,
		todos:    todos,
		workload: wl,
		devtools: dt,
		registry: registry,
		logger:   logger,
	}, nil
}

// newPersister returns the snapshot persister configured in cfg, or nil.
func newPersister(cfg *config.Config) (store.Persister, error) {
	switch {
	case cfg.Store.Bucket != "":
		client := s3.New(s3.Options{
			Region:      envOr("AWS_REGION", "us-east-1"),
			Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials)),
		})
		return store.NewS3Persister(client, cfg.Store.Bucket, cfg.Store.Prefix), nil
	case cfg.Store.Dir != "":
		p, err := store.NewFilePersister(cfg.SnapshotDir())
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, nil
	}
}

// envCredentials reads static credentials from the standard AWS
// environment variables.
func envCredentials(context.Context) (aws.Credentials, error) {
	id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.Credentials{}, stderrors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
	return aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "environment",
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
