package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/JatinSri1909/slack-connect-server/clients"
	slackclient "github.com/JatinSri1909/slack-connect-server/clients/slack"
	"github.com/JatinSri1909/slack-connect-server/config"
	"github.com/JatinSri1909/slack-connect-server/db"
	"github.com/JatinSri1909/slack-connect-server/handlers"
	"github.com/JatinSri1909/slack-connect-server/middleware"
	"github.com/JatinSri1909/slack-connect-server/services/credentials"
	"github.com/JatinSri1909/slack-connect-server/services/messages"
	"github.com/JatinSri1909/slack-connect-server/services/retry"
	"github.com/JatinSri1909/slack-connect-server/services/scheduler"
	"github.com/JatinSri1909/slack-connect-server/services/transport"
	"github.com/JatinSri1909/slack-connect-server/services/txmanager"
)

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	alertMiddleware := middleware.NewErrorAlertMiddleware(middleware.SlackAlertConfig{
		WebhookURL:  cfg.SlackConfig.AlertWebhookURL,
		Environment: cfg.Environment,
		AppName:     "slack-connect-server",
		LogsURL:     cfg.ServerLogsURL,
	})

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	// Initialize repositories with shared connection
	integrationsRepo := db.NewPostgresSlackIntegrationsRepository(dbConn, cfg.DatabaseSchema)
	messagesRepo := db.NewPostgresScheduledMessagesRepository(dbConn, cfg.DatabaseSchema)

	txManager := txmanager.NewTransactionManager(dbConn)

	slackOAuthClient := slackclient.NewSlackOAuthClient(cfg.SlackConfig.ClientID, cfg.SlackConfig.ClientSecret)
	credentialsService := credentials.NewCredentialsService(integrationsRepo, slackOAuthClient, txManager)

	clientFactory := clients.SlackClientFactory(slackclient.NewSlackClient)
	messageTransport := transport.NewMessageTransport(credentialsService, clientFactory, retry.APICallPolicy())

	messagesService := messages.NewMessagesService(messagesRepo)
	deliveryScheduler := scheduler.NewDeliveryScheduler(
		messagesRepo,
		messageTransport,
		cfg.SchedulerConfig.Interval,
		cfg.SchedulerConfig.CourtesyDelay,
		alertMiddleware.WrapBackgroundTask,
	)

	oauthHandler := handlers.NewSlackOAuthHandler(credentialsService, cfg.SlackConfig.RedirectURL)
	messagesHandler := handlers.NewMessagesHTTPHandler(
		messagesService,
		messageTransport,
		credentialsService,
		deliveryScheduler,
	)

	router := mux.NewRouter()
	oauthHandler.SetupEndpoints(router)
	messagesHandler.SetupEndpoints(router)

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			log.Printf("❌ Failed to write health check response: %v", err)
		}
	}).Methods("GET")

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	deliveryScheduler.Start(schedulerCtx)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: strings.Split(cfg.CORSAllowedOrigins, ","),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: alertMiddleware.HTTPMiddleware(corsHandler.Handler(router)),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("✅ Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Printf("📋 Received signal %s, shutting down", sig)
	}

	// Stop discovering new work, let any in-flight cycle finish, then drain HTTP
	deliveryScheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Printf("✅ Server shut down cleanly")
	return nil
}
