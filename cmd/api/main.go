package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/intake-service/internal/api/http"
	"github.com/spec-kit/intake-service/internal/api/http/handlers"
	"github.com/spec-kit/intake-service/internal/assignment"
	"github.com/spec-kit/intake-service/internal/classify"
	"github.com/spec-kit/intake-service/internal/config"
	"github.com/spec-kit/intake-service/internal/escalation"
	"github.com/spec-kit/intake-service/internal/intake"
	"github.com/spec-kit/intake-service/internal/notify"
	"github.com/spec-kit/intake-service/internal/observability"
	"github.com/spec-kit/intake-service/internal/persistence"
	"github.com/spec-kit/intake-service/internal/pipeline"
	"github.com/spec-kit/intake-service/internal/queue"
	"github.com/spec-kit/intake-service/internal/replan"
	"github.com/spec-kit/intake-service/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	threadRepo := repository.NewThreadRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	clientRepo := repository.NewClientRepository(pool)
	projectRepo := repository.NewProjectRepository(pool)
	taskRepo := repository.NewTaskRepository(pool)
	ruleRepo := repository.NewAssignmentRuleRepository(pool)
	unmatchedRepo := repository.NewUnmatchedEmailRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	metrics := observability.NewMetrics()
	jobQueue := queue.New(redis.Client, logger)

	dispatcher := notify.NewDispatcher(notificationRepo, notify.NewRedisPublisher(redis.Client), logger)
	notifier := notify.NewAsyncNotifier(jobQueue)

	gateway := classify.NewGateway(classify.NewOpenAICompleter(cfg.Oracle), logger)

	engine := assignment.NewEngine()
	assigner := assignment.NewService(engine, assignment.Dependencies{
		Threads:  threadRepo,
		Users:    userRepo,
		Projects: projectRepo,
		Rules:    ruleRepo,
		Notifier: notifier,
	}, logger)

	replanner := replan.NewReplanner(gateway, projectRepo, threadRepo, taskRepo, clientRepo, logger)
	scheduler := escalation.NewScheduler(jobQueue, cfg.SLA, logger)
	escalations := escalation.NewWorker(threadRepo, userRepo, notifier, scheduler, cfg.SLA, logger)

	controller := intake.NewController(gateway, clientRepo, threadRepo, messageRepo, unmatchedRepo,
		cfg.Intake.AutoMatchThreshold, cfg.Intake.SuggestMatchThreshold, logger)

	pipe := pipeline.New(pipeline.Dependencies{
		Controller:  controller,
		Gateway:     gateway,
		Assigner:    assigner,
		Replanner:   replanner,
		Scheduler:   scheduler,
		Escalations: escalations,
		Threads:     threadRepo,
		Messages:    messageRepo,
		Clients:     clientRepo,
		Projects:    projectRepo,
		Users:       userRepo,
		Unmatched:   unmatchedRepo,
		Queue:       jobQueue,
		Notifier:    notifier,
	}, logger)

	intakePool := queue.NewPool(jobQueue, queue.QueueIntakePipeline, cfg.Workers.Pipeline, logger, metrics)
	healthPool := queue.NewPool(jobQueue, queue.QueueHealthRecompute, cfg.Workers.Health, logger, metrics)
	escalationPool := queue.NewPool(jobQueue, queue.QueueEscalation, cfg.Workers.Escalation, logger, metrics)
	notifyPool := queue.NewPool(jobQueue, queue.QueueNotifications, cfg.Workers.Notification, logger, metrics)

	pipe.Register(intakePool, healthPool, escalationPool)
	notifyPool.Handle(notify.JobDeliver, func(ctx context.Context, job queue.Job) error {
		var payload notify.DeliverPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return err
		}
		return dispatcher.Notify(ctx, payload.UserID, payload.Type, payload.Title, payload.Message, payload.Data)
	})

	intakePool.Start(ctx)
	healthPool.Start(ctx)
	escalationPool.Start(ctx)
	notifyPool.Start(ctx)

	if err := pipe.ScheduleSweeps(ctx); err != nil {
		logger.Error("failed to schedule sweeps", zap.Error(err))
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Webhook:       handlers.NewWebhookHandler(pipe, cfg.Intake.WebhookSecret, logger),
		Threads:       handlers.NewThreadsHandler(threadRepo, messageRepo, pipe, logger),
		Unmatched:     handlers.NewUnmatchedHandler(unmatchedRepo, pipe, logger),
		Notifications: handlers.NewNotificationsHandler(notificationRepo),
		Assignments:   handlers.NewAssignmentsHandler(userRepo, threadRepo),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
	intakePool.Wait()
	healthPool.Wait()
	escalationPool.Wait()
	notifyPool.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
