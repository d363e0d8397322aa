// Package metrics holds the Prometheus instrumentation for the service.
// Collectors register with the default registry on package init.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation engine
	RecommendationsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tresses_recommendations_generated_total",
			Help: "Recommendations returned to callers, by type",
		},
		[]string{"type"},
	)

	RecommendationStageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tresses_recommendation_stage_failures_total",
			Help: "Recommendation stages that failed and were skipped",
		},
		[]string{"stage"},
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tresses_recommendation_duration_seconds",
			Help:    "Time to generate and rank one recommendation set",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		},
	)

	FeedbackReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tresses_feedback_received_total",
			Help: "Feedback events, by recommendation type and verdict",
		},
		[]string{"type", "satisfied"},
	)

	// Conversation engine
	ConversationMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tresses_conversation_messages_total",
			Help: "Inbound conversation messages, by classified intent",
		},
		[]string{"intent"},
	)

	ConversationEscalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tresses_conversation_escalations_total",
			Help: "Replies that fell back to human escalation",
		},
	)

	FollowupsScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tresses_followups_scheduled_total",
			Help: "Delayed follow-up messages scheduled",
		},
	)

	FollowupsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tresses_followups_delivered_total",
			Help: "Delayed follow-up messages delivered, by outcome",
		},
		[]string{"outcome"},
	)

	// Knowledge store
	SensitivityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tresses_sensitivity_checks_total",
			Help: "Cultural-sensitivity checks, by result",
		},
		[]string{"result"},
	)

	// HTTP API
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tresses_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func RecordRecommendation(typ string) {
	RecommendationsGenerated.WithLabelValues(typ).Inc()
}

func RecordStageFailure(stage string) {
	RecommendationStageFailures.WithLabelValues(stage).Inc()
}

func RecordFeedback(typ string, satisfied bool) {
	FeedbackReceived.WithLabelValues(typ, strconv.FormatBool(satisfied)).Inc()
}

func RecordMessage(intent string) {
	ConversationMessages.WithLabelValues(intent).Inc()
}

func RecordFollowupDelivery(err error) {
	outcome := "delivered"
	if err != nil {
		outcome = "failed"
	}
	FollowupsDelivered.WithLabelValues(outcome).Inc()
}

func RecordSensitivityCheck(appropriate bool) {
	result := "appropriate"
	if !appropriate {
		result = "flagged"
	}
	SensitivityChecks.WithLabelValues(result).Inc()
}

func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
