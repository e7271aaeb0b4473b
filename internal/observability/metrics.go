package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "chat"

var (
	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "HTTP requests currently being served.",
	})
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route and status.",
	}, []string{"method", "route", "status"})
	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"route"})

	grpcHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grpc_server_handled_total",
		Help: "gRPC calls completed by the server, by status code.",
	}, []string{"grpc_service", "grpc_method", "grpc_code"})
	grpcLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grpc_server_handling_seconds",
		Help:    "gRPC handling latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"grpc_service", "grpc_method"})

	threadOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "thread_operations_total",
		Help:      "Gateway operations by name and outcome.",
	}, []string{"op", "outcome"})
	messagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_appended_total",
		Help:      "Messages appended to threads.",
	})
	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification attempts by kind and outcome.",
	}, []string{"kind", "outcome"})
	notifyDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notify_queue_dropped_total",
		Help:      "Message notifications dropped on a full dispatch queue.",
	})
	amqpPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "amqp_publish_errors_total",
		Help:      "Failed event publishes.",
	})
)

// HTTPMetricsMiddleware records in-flight requests, totals and latency per
// matched gin route.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		c.Next()

		route := routeLabel(c)
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// routeLabel keeps label cardinality bounded by never using the raw path.
func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		service, method := splitFullMethod(info.FullMethod)
		start := time.Now()

		resp, err := handler(ctx, req)

		grpcLatency.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		grpcHandled.WithLabelValues(service, method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// splitFullMethod turns "/pkg.Service/Method" into its two parts.
func splitFullMethod(fullMethod string) (string, string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok || service == "" || method == "" {
		return "unknown", "unknown"
	}
	return service, method
}

// ObserveThreadOp records the outcome of a gateway operation.
func ObserveThreadOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	threadOps.WithLabelValues(op, outcome).Inc()
}

func IncMessagesAppended() { messagesAppended.Inc() }

// IncNotification records a notification outcome: sent, suppressed, skipped or failed.
func IncNotification(kind, outcome string) {
	notifications.WithLabelValues(kind, outcome).Inc()
}

func IncNotifyQueueDropped() { notifyDropped.Inc() }

func IncAMQPPublishError() { amqpPublishErrors.Inc() }
