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
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcServerHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_server_handled_total",
			Help: "Total number of gRPC requests handled by the server.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active room websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_room_sessions_active",
			Help: "Number of open room sessions.",
		},
	)
	sessionSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_room_sends_total",
			Help: "Send attempts by outcome.",
		},
		[]string{"result"},
	)
	historyLoadFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_history_load_failures_total",
			Help: "Historical message loads that failed or timed out.",
		},
	)
	broadcastDuplicatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_broadcast_duplicates_total",
			Help: "Broadcast events ignored because the message was already shown.",
		},
	)
	broadcastDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_broadcast_dropped_total",
			Help: "Broadcast events dropped because a subscriber queue was full.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcServerHandledTotal,
		wsActiveConnections,
		wsEventsTotal,
		sessionsActive,
		sessionSendsTotal,
		historyLoadFailuresTotal,
		broadcastDuplicatesTotal,
		broadcastDroppedTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		statusInfo := status.Convert(err)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, statusInfo.Code().String()).Inc()
		return resp, err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncSessionsActive() {
	sessionsActive.Inc()
}

func DecSessionsActive() {
	sessionsActive.Dec()
}

// IncSend records a send outcome: "ok", "ignored" or "error".
func IncSend(result string) {
	sessionSendsTotal.WithLabelValues(result).Inc()
}

func IncHistoryLoadFailure() {
	historyLoadFailuresTotal.Inc()
}

func IncBroadcastDuplicate() {
	broadcastDuplicatesTotal.Inc()
}

func IncBroadcastDropped() {
	broadcastDroppedTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
