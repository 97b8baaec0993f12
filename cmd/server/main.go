package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/YanwenWang1125/RealtorOS-sub000/internal/config"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/db"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/handler"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/metrics"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/queue"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/repository"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/scheduler"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/service"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/webhook"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	conn, err := db.Connect(cfg.Database.URL)
	if err != nil {
		logrus.Fatalf("failed to connect to database: %v", err)
	}
	defer conn.Close()

	metrics.Init()

	// Repositories
	leadRepo := &repository.LeadRepository{DB: conn}
	agentRepo := &repository.AgentRepository{DB: conn}
	followUpRepo := &repository.FollowUpRepository{DB: conn}
	messageRepo := &repository.EmailMessageRepository{DB: conn}

	// Optional lifecycle event feed
	var publisher *queue.Publisher
	if cfg.Queue.URL != "" {
		publisher, err = queue.NewPublisher(cfg.Queue.URL, cfg.Queue.QueueName)
		if err != nil {
			logrus.Fatalf("failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
	} else {
		logrus.Warn("CRM_AMQP_URL not set, lifecycle event feed disabled")
	}

	// Content generation: OpenAI draft with templated fallback; templates
	// only when no API key is configured.
	var primary service.ContentGenerator
	if cfg.OpenAI.APIKey != "" {
		primary = service.NewOpenAIGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}
	generator := service.NewFallbackGenerator(primary)

	sender := service.NewSendGridSender(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName, cfg.SendGrid.SendTimeout)

	followUpService := service.NewFollowUpService(followUpRepo)
	pipeline := service.NewPipeline(followUpRepo, messageRepo, leadRepo, agentRepo, generator, sender, publisher)

	sched := scheduler.New(scheduler.Config{
		Interval:     cfg.Scheduler.Interval,
		RunOnStart:   cfg.Scheduler.RunOnStart,
		MisfireGrace: cfg.Scheduler.MisfireGrace,
	}, pipeline.RunCycle)
	sched.Start()

	verifier, err := webhook.NewVerifier(cfg.Webhook.PublicKey, cfg.Webhook.Tolerance, cfg.Webhook.VerifySignature)
	if err != nil {
		logrus.Fatalf("failed to configure webhook verification: %v", err)
	}
	if !cfg.Webhook.VerifySignature {
		logrus.Warn("webhook signature verification is DISABLED; never run this in production")
	}

	webhookHandler := webhook.NewHandler(verifier, service.NewEventProcessor(messageRepo))
	leadHandler := handler.NewLeadHandler(leadRepo, followUpService, publisher)
	opsHandler := handler.NewOpsHandler(sched, followUpService)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/leads", leadHandler.CreateLead)
	r.Delete("/leads/{id}", leadHandler.DeleteLead)
	r.Post("/leads/{id}/followups", leadHandler.ScheduleFollowUp)

	r.Post("/webhooks/email/events", webhookHandler.HandleEvents)

	r.Get("/internal/scheduler/status", opsHandler.SchedulerStatus)
	r.Post("/internal/scheduler/run", opsHandler.RunCycle)
	r.Get("/internal/followups/due", opsHandler.DueFollowUps)
	r.Get("/healthz", opsHandler.Health)
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logrus.Infof("🚀 Server running on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("shutdown signal received")

	// The scheduler stops first and waits for any in-flight cycle, so no
	// pipeline work is cut off mid-send.
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("server shutdown: %v", err)
	}
	logrus.Info("server stopped")
}
