package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"conversation-service/internal/cache"
	"conversation-service/internal/config"
	"conversation-service/internal/conversation"
	"conversation-service/internal/db"
	"conversation-service/internal/handlers"
	"conversation-service/internal/idgen"
	"conversation-service/internal/logger"
	"conversation-service/internal/mail"
	"conversation-service/internal/middleware"
	"conversation-service/internal/notify"
	"conversation-service/internal/observability"
	"conversation-service/internal/rabbitmq"
	"conversation-service/internal/repositories"
	"conversation-service/internal/telemetry"
	"conversation-service/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Environment, cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	threads  repositories.ThreadRepository
	messages repositories.MessageRepository
	prefs    repositories.PreferenceRepository
	profiles repositories.ProfileDirectory
	jobs     repositories.JobDirectory
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:    cfg.OTel.Endpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	if cfg.OTel.Enabled() {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	ids, err := idgen.NewSnowflake(cfg.NodeID)
	if err != nil {
		return fmt.Errorf("init id generator: %w", err)
	}

	checks := map[string]handlers.Pinger{}
	var st stores
	switch cfg.Store.Backend {
	case "postgres":
		database, err := db.Connect(ctx, cfg.Store.DSN, db.Options{
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("connect to db: %w", err)
		}
		defer database.Close()
		checks["postgres"] = database

		st = stores{
			threads:  repositories.NewThreadRepo(database, ids),
			messages: repositories.NewMessageRepo(database, ids),
			prefs:    repositories.NewPreferenceRepo(database),
			profiles: repositories.NewProfileRepo(database),
			jobs:     repositories.NewJobRepo(database),
		}
	default:
		slog.WarnContext(ctx, "using in-memory store, data is lost on restart")
		memory := repositories.NewMemoryStore(ids)
		directory := repositories.NewMemoryDirectory()
		st = stores{
			threads:  memory,
			messages: memory,
			prefs:    repositories.NewMemoryPreferenceRepo(),
			profiles: directory,
			jobs:     directory,
		}
	}

	var prefCache notify.PreferenceCache
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			slog.WarnContext(ctx, "preference cache disabled", "error", err)
		} else {
			defer client.Close()
			prefCache = cache.NewPreferenceCache(client, cfg.Redis.PreferenceTTL)
			checks["redis"] = handlers.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		}
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	mode, reason := rabbitmq.Describe(publisher)
	slog.InfoContext(ctx, "rabbitmq publisher ready", "mode", mode, "reason", reason)

	transport, err := newMailTransport(cfg.Mail, publisher)
	if err != nil {
		return err
	}

	prefs := notify.NewPreferenceStore(st.prefs, prefCache)
	templates, err := notify.ParseTemplates()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	dispatcher := notify.NewDispatcher(prefs, st.profiles, transport, templates, notify.Options{
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		SendTimeout: cfg.Notify.SendTimeout,
		BaseURL:     cfg.AppBaseURL,
	})
	dispatcher.Start()

	service := conversation.NewService(conversation.Deps{
		Threads:  st.threads,
		Messages: st.messages,
		Profiles: st.profiles,
		Jobs:     st.jobs,
		Notifier: dispatcher,
		Auditor:  telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoutingKey, cfg.ServiceName, cfg.Environment),
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", handlers.Health(checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(middleware.NewJWTValidator(cfg.JWT.Secret, cfg.JWT.Issuer))
	api := router.Group("/", authMiddleware)
	handlers.NewThreadHandler(service).Register(api)
	handlers.NewPreferenceHandler(prefs).Register(api)
	handlers.NewNotificationHandler(dispatcher).Register(router.Group("/internal", authMiddleware, middleware.RequireRole(middleware.RoleService)))

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		slog.Info("grpc server listening", "port", cfg.Server.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "http shutdown error", "error", err)
		}
		grpcServer.GracefulStop()
		if err := dispatcher.Close(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "notification drain incomplete", "error", err)
		}
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func newMailTransport(cfg config.MailConfig, publisher rabbitmq.Publisher) (mail.Transport, error) {
	switch cfg.Transport {
	case "smtp":
		transport := mail.NewSMTPTransport(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		if !transport.IsConfigured() {
			return nil, errors.New("MAIL_TRANSPORT=smtp requires SMTP_HOST and SMTP_FROM")
		}
		return transport, nil
	case "amqp":
		if mode, _ := rabbitmq.Describe(publisher); mode != "amqp" {
			return nil, errors.New("MAIL_TRANSPORT=amqp requires a reachable AMQP_URL")
		}
		return mail.NewAMQPTransport(publisher, cfg.MailRoutingKey), nil
	default:
		return mail.LogTransport{}, nil
	}
}
