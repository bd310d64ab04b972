// Package metrics объявляет метрики Prometheus сервиса подписок.
// Метрики регистрируются в реестре по умолчанию при инициализации пакета
// и отдаются через promhttp на /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "plan_subscriptions"

// Переходы жизненного цикла подписки.
const (
	TransitionSubscribe = "subscribe"
	TransitionUpgrade   = "upgrade"
	TransitionCancel    = "cancel"
	TransitionExpire    = "expire"
)

// HTTPRequestsTotal считает запросы по шаблону маршрута, методу и коду ответа.
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by route pattern, method and status code.",
	},
	[]string{"route", "method", "code"},
)

// HTTPRequestDuration — длительность обработки запроса.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP request handling.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"route", "method"},
)

// SubscriptionTransitionsTotal считает успешные переходы подписок.
// Labels:
//   - transition: subscribe, upgrade, cancel, expire
//   - plan_type: тип плана после перехода
var SubscriptionTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscription_transitions_total",
		Help:      "Total number of successful subscription lifecycle transitions.",
	},
	[]string{"transition", "plan_type"},
)

// SubscriptionsExpiredTotal считает подписки, переведённые в expired фоновым обходом.
var SubscriptionsExpiredTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscriptions_expired_total",
		Help:      "Total number of subscriptions expired by the background sweeper.",
	},
)

// RateLimitedTotal считает отклонённые ограничителем частоты запросы.
var RateLimitedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by the rate limiter.",
	},
)

// ObserveTransition увеличивает счётчик перехода.
func ObserveTransition(transition, planType string) {
	SubscriptionTransitionsTotal.WithLabelValues(transition, planType).Inc()
}

// Middleware записывает метрики запроса. Маршрут берётся из шаблона chi,
// чтобы идентификаторы в пути не раздували кардинальность.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
