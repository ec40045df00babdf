package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RugileVa/TiGets/internal/di"
	"github.com/RugileVa/TiGets/pkg/kafka"
	"github.com/RugileVa/TiGets/pkg/logger"
	"github.com/RugileVa/TiGets/pkg/telemetry"
)

// RelayOptions holds flags for the relay command
type RelayOptions struct {
	Once bool
}

// NewRelayCommand creates the relay command
func NewRelayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RelayOptions{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Publish ticket transfer events from the outbox to Kafka",
		Long: `Poll the outbox table and publish ticket.transferred events to Kafka.

Failed publishes are retried until the message's retry budget is spent.
Published rows older than the retention period are purged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "relay a single batch and exit")

	return cmd
}

func runRelay(cmd *cobra.Command, rootOpts *RootOptions, opts *RelayOptions) error {
	cfg, err := loadConfig(rootOpts, "relay")
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName + "-relay",
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	db, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Kafka.Brokers,
		ClientID:      cfg.Kafka.ClientID,
		MaxRetries:    5,
		RetryInterval: 2 * time.Second,
	})
	if err != nil {
		return err
	}
	defer producer.Close()

	container := di.NewContainer(&di.ContainerConfig{DB: db, Config: cfg})
	relay := container.NewOutboxWorker(producer)

	if opts.Once {
		published, err := relay.ProcessBatch(ctx, false)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published %d message(s)\n", published)
		return nil
	}

	if err := relay.Start(ctx); err != nil {
		return err
	}
	log.Info("relaying transfer events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.TransferTopic))

	<-ctx.Done()
	relay.Stop()
	return nil
}
