package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/gdev-ltda/orderflow/internal/config"
	"github.com/gdev-ltda/orderflow/internal/dispatcher"
	"github.com/gdev-ltda/orderflow/internal/dlq"
	"github.com/gdev-ltda/orderflow/internal/eventlog"
	"github.com/gdev-ltda/orderflow/internal/events"
	"github.com/gdev-ltda/orderflow/internal/fanout"
	"github.com/gdev-ltda/orderflow/internal/handlers"
	"github.com/gdev-ltda/orderflow/internal/logging"
	natsclient "github.com/gdev-ltda/orderflow/internal/messaging/nats"
	"github.com/gdev-ltda/orderflow/internal/repository"
	"github.com/gdev-ltda/orderflow/internal/server"
	"github.com/gdev-ltda/orderflow/internal/service"
)

var migrationsPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the order service",
	Long: `Run the HTTP API, the event consumer groups, and the email
dispatcher in a single process.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&migrationsPath, "migrations", "migrations", "path to migration files")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(cfg.Database.URL()); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations applied")

	repo, err := repository.NewPostgresRepository(ctx, cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer repo.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = cfg.NATS.URL
	natsCfg.Name = cfg.NATS.Name
	jsClient, err := natsclient.NewJetStreamClient(natsCfg)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer jsClient.Close()

	if _, err := jsClient.CreateOrUpdateStream(ctx, natsclient.OrderEmailsStream); err != nil {
		return err
	}
	if _, err := jsClient.CreateOrUpdateStream(ctx, natsclient.OrderEmailsDLQStream); err != nil {
		return err
	}
	consumer, err := jsClient.CreateOrUpdateConsumer(ctx, natsclient.OrderEmailsStream.Name, natsclient.ConsumerConfig{
		Name:          "order-emails",
		FilterSubject: natsclient.OrderEmailsStream.Subjects[0],
		AckWait:       30 * time.Second,
		MaxDeliver:    cfg.Email.MaxAttempts,
		MaxAckPending: 100,
	})
	if err != nil {
		return err
	}

	store := eventlog.NewStore(redisClient, cfg.EventLog.Prefix, cfg.EventLog.TTL)
	deadQ := dlq.NewJetStreamQueue(jsClient.JetStream(), natsclient.OrderEmailsDLQStream.Name)

	router := fanout.NewRouter(jsClient, logger)
	if err := router.Register(
		fanout.EventLogGroup(store, logger),
		fanout.BillingGroup(logger),
	); err != nil {
		return err
	}
	defer router.Close()

	deduper := dispatcher.NewDeduper(redisClient, "email-sent", cfg.Email.DedupeTTL)
	mailer := dispatcher.NewSMTPMailer(dispatcher.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.From,
	})
	disp := dispatcher.New(
		dispatcher.NewJetStreamBuffer(consumer),
		deduper,
		mailer,
		deadQ,
		logger,
		dispatcher.Config{
			BatchSize:   cfg.Email.BatchSize,
			BatchWait:   cfg.Email.BatchWait,
			MaxAttempts: cfg.Email.MaxAttempts,
		},
	)

	dispDone := make(chan struct{})
	go func() {
		defer close(dispDone)
		if err := disp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dispatcher stopped", "error", err)
		}
	}()

	publisher := events.NewPublisher(jsClient)
	svc := service.NewOrderService(repo, repo, publisher, logger)
	srv := server.New(cfg.Server.Addr(), server.NewRouter(handlers.NewOrderHandler(svc, logger)), logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	<-dispDone

	if err := jsClient.Drain(); err != nil {
		logger.Error("nats drain failed", "error", err)
	}
	return nil
}

func runMigrations(databaseURL string) error {
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
