package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/expansionAgency/whatshub/internal/config"
	"github.com/expansionAgency/whatshub/internal/convo"
	"github.com/expansionAgency/whatshub/internal/gateway"
	"github.com/expansionAgency/whatshub/internal/live"
	"github.com/expansionAgency/whatshub/internal/logging"
	"github.com/expansionAgency/whatshub/internal/metrics"
	"github.com/expansionAgency/whatshub/internal/notify"
	"github.com/expansionAgency/whatshub/internal/outbound"
	"github.com/expansionAgency/whatshub/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			log = logging.NewWithStyle(cfg.Logging.Level, cfg.Logging.Style)

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("preparing data directories: %w", err)
			}

			dsn := cfg.Store.DSN
			if cfg.Store.Driver == "sqlite" && dsn == "" {
				dsn = filepath.Join(paths.Data, "whatshub.db")
			}
			db, err := store.Open(cfg.Store.Driver, dsn, log)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer db.Close()

			m := metrics.New()

			policy := convo.Policy{
				GroupPrefix:          cfg.Reconstruct.GroupPrefix,
				OperatorAttachWindow: time.Duration(cfg.Reconstruct.OperatorAttachWindowMinutes) * time.Minute,
				MinNumberDigits:      cfg.Reconstruct.MinNumberDigits,
			}

			sinks := []notify.Notifier{notify.NewLogNotifier(log)}
			if cfg.Notify.RabbitMQ.URL != "" {
				sinks = append(sinks, notify.NewRabbitPublisher(cfg.Notify.RabbitMQ.URL, cfg.Notify.RabbitMQ.Queue, log))
				log.Info().Str("queue", cfg.Notify.RabbitMQ.Queue).Msg("rabbitmq notifications enabled")
			}
			notifier := notify.NewMulti(log, sinks...)
			defer notifier.Close()

			coord := live.NewCoordinator(live.Options{
				Store:         db,
				Reconstructor: convo.New(policy),
				Notifier:      notifier,
				Metrics:       m,
				Log:           log,
				PollInterval:  time.Duration(cfg.Live.PollIntervalSeconds) * time.Second,
			})

			sender := outbound.NewSender(outbound.Config{
				PrimaryURL:      cfg.Webhook.PrimaryURL,
				FallbackURL:     cfg.Webhook.FallbackURL,
				Timeout:         time.Duration(cfg.Webhook.TimeoutSeconds) * time.Second,
				FallbackTimeout: time.Duration(cfg.Webhook.FallbackTimeoutSeconds) * time.Second,
			}, policy, coord, db, m, log)

			srv := gateway.New(cfg, log, coord, sender, db, m)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := coord.LoadInitial(ctx); err != nil {
				return fmt.Errorf("loading messages: %w", err)
			}
			coord.Start(ctx, db.Feed().Subscribe(ctx))

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
