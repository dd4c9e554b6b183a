package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	FilterDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_decisions_total",
			Help: "Total number of filter decisions by action and deciding rule (count)",
		},
		[]string{"action", "rule"},
	)

	FilterNoiseDetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_noise_detections_total",
			Help: "Total number of noise detector hits (count)",
		},
		[]string{"kind"},
	)

	FilterFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_fallback_total",
			Help: "Total number of fail-open fallback decisions (count)",
		},
		[]string{"reason"},
	)

	FilterRuleEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_rule_evaluations_total",
			Help: "Total number of custom rule evaluations (count)",
		},
		[]string{"rule_id", "result"},
	)

	FilterActiveRules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "filter_active_rules",
			Help: "Number of rules held by the registry (count)",
		},
	)

	FilterDecisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filter_decision_duration_ms",
			Help:    "Decision latency in milliseconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		},
		[]string{"action"},
	)

	PipelineMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_messages_total",
			Help: "Total number of broker messages handled by the filter pipeline (count)",
		},
		[]string{"status"},
	)

	IdempotencyChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idempotency_checks_total",
			Help: "Total number of redelivery checks (count)",
		},
		[]string{"result"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// RegisterAll registers every collector with the default registry. Safe to
// call more than once.
func RegisterAll() {
	registerOnce.Do(func() {
		RegisterFilterMetrics()
		RegisterBrokerMetrics()
		RegisterCircuitBreakerMetrics()
		RegisterManagementMetrics()
	})
}

func RegisterFilterMetrics() {
	prometheus.MustRegister(FilterDecisionsTotal)
	prometheus.MustRegister(FilterNoiseDetectionsTotal)
	prometheus.MustRegister(FilterFallbackTotal)
	prometheus.MustRegister(FilterRuleEvaluationsTotal)
	prometheus.MustRegister(FilterActiveRules)
	prometheus.MustRegister(FilterDecisionDuration)
	prometheus.MustRegister(PipelineMessagesTotal)
	prometheus.MustRegister(IdempotencyChecksTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterManagementMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func IncFilterDecision(action, rule string) {
	FilterDecisionsTotal.WithLabelValues(action, rule).Inc()
}

func IncNoiseDetection(kind string) {
	FilterNoiseDetectionsTotal.WithLabelValues(kind).Inc()
}

func IncFallback(reason string) {
	FilterFallbackTotal.WithLabelValues(reason).Inc()
}

func IncRuleEvaluation(ruleID, result string) {
	FilterRuleEvaluationsTotal.WithLabelValues(ruleID, result).Inc()
}

func SetActiveRules(count int) {
	FilterActiveRules.Set(float64(count))
}

func ObserveDecisionDuration(duration time.Duration, action string) {
	FilterDecisionDuration.WithLabelValues(action).Observe(float64(duration.Microseconds()) / 1000)
}

func IncPipelineMessage(status string) {
	PipelineMessagesTotal.WithLabelValues(status).Inc()
}

func IncIdempotencyCheck(result string) {
	IdempotencyChecksTotal.WithLabelValues(result).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}
