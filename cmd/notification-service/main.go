// cmd/notification-service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ops-notifications/internal/api"
	awsclients "ops-notifications/internal/common/aws"
	"ops-notifications/internal/common/camunda"
	"ops-notifications/internal/common/config"
	"ops-notifications/internal/common/database"
	"ops-notifications/internal/common/logger"
	"ops-notifications/internal/common/observability"
	"ops-notifications/internal/models"
	"ops-notifications/internal/notification/channels"
	"ops-notifications/internal/notification/realtime"
	"ops-notifications/internal/notification/service"
	"ops-notifications/internal/notification/store"

	sbn "ops-notifications/internal/workers/notification/send-bulk-notification"
	sn "ops-notifications/internal/workers/notification/send-notification"
	stn "ops-notifications/internal/workers/notification/send-template-notification"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.New(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting notification service...", zap.String("version", cfg.App.Version))
	if cfg.HTTP.JWTSecret == "" {
		zapLog.Fatal("http.jwt_secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = database.RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		if pg, err = database.NewPostgres(cfg.Database.Postgres); err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.Migrate(ctx, store.Schema); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}

	// --- Redis ---
	rdb := database.NewRedis(cfg.Database.Redis)
	err = database.RetryWithBackoff(ctx, rdb.Ping, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()

	notificationStore := store.New(pg.DB)
	templates := store.NewCachedTemplates(
		notificationStore,
		rdb.Client,
		time.Duration(cfg.Notifications.Templates.CacheTTL)*time.Second,
		log,
	)

	// --- Channels ---
	var awsClients *awsclients.Clients
	if needsAWS(cfg) {
		if awsClients, err = awsclients.NewClients(ctx, cfg.Notifications.AWS.Region); err != nil {
			zapLog.Fatal("aws client init failed", zap.Error(err))
		}
	}

	var hub *realtime.Hub
	dispatchers := []channels.Dispatcher{}
	if cfg.Notifications.Realtime.Enabled {
		hub = realtime.NewHub(log)
		defer hub.CloseAll()

		bridge := realtime.NewRedisBridge(rdb.Client, cfg.Notifications.Realtime.Channel, hub, log)
		if err := bridge.Start(ctx); err != nil {
			zapLog.Fatal("realtime bridge failed", zap.Error(err))
		}
		dispatchers = append(dispatchers, channels.NewInAppDispatcher(bridge, log))
	} else {
		dispatchers = append(dispatchers, channels.NewInAppDispatcher(nil, log))
	}

	if cfg.Notifications.Email.Enabled {
		dispatchers = append(dispatchers, channels.NewEmailDispatcher(
			notificationStore,
			buildMailer(cfg, awsClients),
			cfg.Notifications.FooterText,
			log,
		))
	}

	pushSender, err := buildPushSender(ctx, cfg, awsClients)
	if err != nil {
		zapLog.Fatal("push sender init failed", zap.Error(err))
	}
	dispatchers = append(dispatchers, channels.NewPushDispatcher(notificationStore, pushSender, log))

	svc := service.New(service.Dependencies{
		Store:        notificationStore,
		Templates:    templates,
		Dispatchers:  dispatchers,
		BulkChannels: bulkChannels(cfg.Notifications.BulkDefaultChannels),
		Logger:       log,
	})

	// --- Zeebe workers ---
	readiness := map[string]api.ReadinessCheck{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	var zeebe *camunda.Client
	var workers []*camunda.CamundaWorker
	if cfg.Camunda.Enabled {
		err = database.RetryWithBackoff(ctx, func(ctx context.Context) error {
			var err error
			zeebe, err = camunda.NewClient(ctx, camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		readiness["zeebe"] = zeebe.HealthCheck
		workers = startWorkers(cfg, zeebe, svc, obs, log)
	}

	// --- HTTP ---
	router := api.NewRouter(api.RouterConfig{
		Service:       svc,
		Hub:           hub,
		JWTSecret:     cfg.HTTP.JWTSecret,
		AllowedOrigin: cfg.HTTP.AllowedOrigin,
		Readiness:     readiness,
		Logger:        log,
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Notification service stopped gracefully")
}

func startWorkers(cfg *config.Config, zeebe *camunda.Client, svc *service.Service, obs *observability.Observability, log logger.Logger) []*camunda.CamundaWorker {
	var started []*camunda.CamundaWorker

	start := func(taskType string, handler camunda.JobHandler, maxJobs int, timeout time.Duration) {
		if !config.GetWorkerConfig(cfg, taskType).Enabled {
			log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
			return
		}
		started = append(started, camunda.StartWorker(zeebe.Zeebe(), camunda.WorkerOptions{
			TaskType:      taskType,
			MaxJobsActive: maxJobs,
			Timeout:       timeout,
		}, handler, log))
	}

	snCfg := sn.LoadConfig(config.GetWorkerConfig(cfg, sn.TaskType))
	start(sn.TaskType, sn.NewHandler(snCfg, svc, obs, log), snCfg.MaxJobsActive, snCfg.Timeout)

	sbnCfg := sbn.LoadConfig(config.GetWorkerConfig(cfg, sbn.TaskType))
	start(sbn.TaskType, sbn.NewHandler(sbnCfg, svc, obs, log), sbnCfg.MaxJobsActive, sbnCfg.Timeout)

	stnCfg := stn.LoadConfig(config.GetWorkerConfig(cfg, stn.TaskType))
	start(stn.TaskType, stn.NewHandler(stnCfg, svc, obs, log), stnCfg.MaxJobsActive, stnCfg.Timeout)

	return started
}

func needsAWS(cfg *config.Config) bool {
	return (cfg.Notifications.Email.Enabled && cfg.Notifications.Email.Provider == "ses") ||
		cfg.Notifications.Push.Provider == "sns"
}

func buildMailer(cfg *config.Config, clients *awsclients.Clients) channels.Mailer {
	email := cfg.Notifications.Email
	if email.Provider == "ses" {
		return channels.NewSESMailer(clients.SES, email.From)
	}
	return channels.NewSMTPMailer(channels.SMTPConfig{
		Host:     email.SMTP.Host,
		Port:     email.SMTP.Port,
		Username: email.SMTP.Username,
		Password: email.SMTP.Password,
		UseTLS:   email.SMTP.UseTLS,
		From:     email.From,
	})
}

// buildPushSender returns an untyped nil for provider none so the dispatcher reports skipped.
func buildPushSender(ctx context.Context, cfg *config.Config, clients *awsclients.Clients) (channels.PushSender, error) {
	push := cfg.Notifications.Push
	switch push.Provider {
	case "sns":
		return channels.NewSNSPushSender(clients.SNS), nil
	case "fcm":
		client, err := channels.NewFCMClient(ctx, push.CredentialsFile, push.ProjectID)
		if err != nil {
			return nil, err
		}
		return channels.NewFCMPushSender(client), nil
	default:
		return nil, nil
	}
}

func bulkChannels(names []string) []models.Channel {
	out := make([]models.Channel, 0, len(names))
	for _, name := range names {
		if ch := models.Channel(name); ch.Valid() {
			out = append(out, ch)
		}
	}
	return out
}
