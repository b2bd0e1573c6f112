package main

import (
	"context"
	"log"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/config"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/devserver"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/observability"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/rabbitmq"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/telemetry"
)

const serviceName = "kratos-hub-devserver"

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	ctx := context.Background()
	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	store, err := devserver.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	defer publisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(publisher))

	audit := telemetry.NewAuditEmitter(publisher, "audit.devserver", serviceName, cfg.Environment)

	tokens := devserver.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	server := devserver.NewServer(store, tokens, audit)

	router := server.Router(serviceName, cfg.DebugRoutes)
	log.Printf("devserver listening on %s", cfg.HTTPAddr)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
