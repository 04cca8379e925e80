package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	authpb "messenger-service/pb/auth"
	userpb "messenger-service/pb/user"

	"messenger-service/internal/db"
	grpcclient "messenger-service/internal/grpc"
	"messenger-service/internal/handlers"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/relay"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

const serviceName = "messenger-service"

func main() {
	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	authAddr := getEnv("AUTH_GRPC_ADDR", "localhost:8084")
	userAddr := getEnv("USER_GRPC_ADDR", "localhost:8085")

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithUnaryInterceptor(observability.GRPCClientMetricsUnaryInterceptor()),
	}

	authConn, err := grpc.Dial(authAddr, dialOpts...)
	if err != nil {
		log.Fatalf("failed to connect to auth grpc: %v", err)
	}
	defer authConn.Close()

	userConn, err := grpc.Dial(userAddr, dialOpts...)
	if err != nil {
		log.Fatalf("failed to connect to user grpc: %v", err)
	}
	defer userConn.Close()

	authClient := grpcclient.NewAuthClient(authpb.NewAuthServiceClient(authConn))
	userClient := grpcclient.NewUserClient(userpb.NewUserInternalClient(userConn))

	amqpURL := getEnv("AMQP_URL", "")
	if eventsPublisher, err := observability.NewAMQPPublisher(amqpURL, getEnv("AMQP_EVENTS_EXCHANGE", "ws_events")); err != nil {
		log.Printf("ws events publisher disabled: %v", err)
	} else {
		observability.SetPublisher(eventsPublisher)
		defer eventsPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(amqpURL, getEnv("AMQP_AUDIT_EXCHANGE", "audit"))
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, "audit_log.messenger", serviceName, getEnv("ENVIRONMENT", "development"))

	messageRepo := repositories.NewMessageRepo(database)
	registry := relay.NewRegistry()
	messageRelay := relay.NewRelay(messageRepo, registry)

	historyHandler := handlers.NewHistoryHandler(messageRepo, userClient, auditEmitter)
	wsHandler := ws.NewHandler(messageRelay, authClient)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(authClient)

	router.GET("/messages/:user_id/:other_user_id", authMiddleware, historyHandler.GetHistory)
	router.GET("/ws", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, auditEmitter, getEnv("DEBUG_ROUTES", "") == "true")

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
