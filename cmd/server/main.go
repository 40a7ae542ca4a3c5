package main

import (
	"log"
	netHttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"learnhub/cache"
	"learnhub/config"
	"learnhub/db"
	"learnhub/document"
	"learnhub/http"
	"learnhub/http/handlers"
	"learnhub/logger"
	"learnhub/services"
	"learnhub/services/kafka"
	"learnhub/storage"
	"learnhub/store/postgres"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	// Audit producer is best-effort; a missing broker never stops the server
	kafka.InitProducer()

	if err := db.InitDB(); err != nil {
		logger.Fatal("Error initializing database: %v", err)
	}

	payments := postgres.NewPaymentRepository(db.DB)
	enrollments := postgres.NewEnrollmentRepository(db.DB)
	certificates := postgres.NewCertificateRepository(db.DB)
	catalog := postgres.NewCatalogRepository(db.DB)

	docs, err := document.NewLocalService(cfg.TemplateDir, filepath.Join(cfg.StorageDir, "work"))
	if err != nil {
		logger.Fatal("Error initializing document service: %v", err)
	}
	files, err := storage.NewLocalService(cfg.StorageDir, cfg.PublicBaseURL)
	if err != nil {
		logger.Fatal("Error initializing file storage: %v", err)
	}

	audit := services.NewKafkaAuditSink(cfg.KafkaAuditTopic)
	verifyCache := cache.New(cfg.RedisAddr)

	orders := services.NewRazorpayOrderClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	paymentService := services.NewPaymentService(payments, enrollments, catalog, orders, audit,
		cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	webhookService := services.NewWebhookService(payments, enrollments, audit, cfg.RazorpayWebhookSecret)
	certificateService := services.NewCertificateService(enrollments, certificates, catalog,
		docs, files, audit, services.NewSMTPMailer(), cfg.PublicBaseURL)

	http.SetupRoutes(http.Handlers{
		Webhook:     handlers.NewWebhookHandler(webhookService),
		Payment:     handlers.NewPaymentHandler(paymentService, payments),
		Certificate: handlers.NewCertificateHandler(certificateService, verifyCache),
		Enrollment:  handlers.NewEnrollmentHandler(enrollments, catalog),
	}, catalog, files.Root())

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting on :%s", cfg.Port)
		log.Fatal(netHttp.ListenAndServe(":"+cfg.Port, nil))
	}()

	<-sigChan
	logger.Info("Shutdown signal received, closing producers...")

	if err := kafka.Close(); err != nil {
		logger.Error("Error closing Kafka producer: %v", err)
	}
	if err := verifyCache.Close(); err != nil {
		logger.Error("Error closing redis client: %v", err)
	}

	logger.Info("Server shutdown complete")
}
