package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_http_requests_total",
			Help: "Total number of HTTP requests processed by the messenger service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messenger_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcClientHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_grpc_client_handled_total",
			Help: "Total number of gRPC calls issued to collaborator services.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "messenger_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcClientHandledTotal,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// GRPCClientMetricsUnaryInterceptor counts outgoing calls to the auth and
// user services by method and status code.
func GRPCClientMetricsUnaryInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		err := invoker(ctx, method, req, reply, cc, opts...)
		statusInfo := status.Convert(err)
		service, rpc := splitFullMethod(method)
		grpcClientHandledTotal.WithLabelValues(service, rpc, statusInfo.Code().String()).Inc()
		return err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
