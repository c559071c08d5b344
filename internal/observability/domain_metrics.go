package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_chat_turns_total",
			Help: "Total number of chat turns by outcome status.",
		},
		[]string{"status"},
	)
	chatTurnLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_chat_turn_latency_ms",
			Help:    "End-to-end chat turn latency in milliseconds, inter-call delay included.",
			Buckets: []float64{250, 500, 1000, 2500, 5000, 10000, 20000, 30000, 60000},
		},
	)
	chatTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_chat_tokens_total",
			Help: "Total completion-provider tokens consumed by chat turns.",
		},
		[]string{"kind"},
	)
	completionCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_completion_calls_total",
			Help: "Total number of completion API calls by outcome status.",
		},
		[]string{"status"},
	)
	completionCallLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_completion_call_latency_ms",
			Help:    "Completion API call latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 20000, 30000},
		},
	)
	sqlExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_sql_executions_total",
			Help: "Total number of generated SQL statements executed by outcome status.",
		},
		[]string{"status"},
	)
	sessionsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_sessions_started_total",
			Help: "Total number of chat sessions started.",
		},
	)
	transcriptPersistFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_transcript_persist_failures_total",
			Help: "Total number of failed transcript persistence attempts.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		chatTurnsTotal,
		chatTurnLatencyMs,
		chatTokensTotal,
		completionCallsTotal,
		completionCallLatencyMs,
		sqlExecutionsTotal,
		sessionsStartedTotal,
		transcriptPersistFailuresTotal,
	)
}

func ObserveChatTurn(status string, promptTokens, completionTokens int, latency time.Duration) {
	chatTurnsTotal.WithLabelValues(status).Inc()
	chatTurnLatencyMs.Observe(float64(latency.Milliseconds()))
	if promptTokens > 0 {
		chatTokensTotal.WithLabelValues("prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		chatTokensTotal.WithLabelValues("completion").Add(float64(completionTokens))
	}
}

func ObserveCompletionCall(status string, elapsed time.Duration) {
	completionCallsTotal.WithLabelValues(status).Inc()
	completionCallLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveSQLExecution(status string) {
	sqlExecutionsTotal.WithLabelValues(status).Inc()
}

func IncrementSessionStarted() {
	sessionsStartedTotal.Inc()
}

func IncrementTranscriptPersistFailure() {
	transcriptPersistFailuresTotal.Inc()
}
