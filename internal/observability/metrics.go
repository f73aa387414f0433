package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InvestigationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsdetector_investigations_total",
		Help: "The total number of investigations by agent outcome",
	}, []string{"outcome"})

	AgentSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bsdetector_agent_steps",
		Help:    "Number of model steps taken per investigation",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsdetector_tool_calls_total",
		Help: "The total number of agent tool calls",
	}, []string{"tool", "status"})

	ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bsdetector_tool_duration_seconds",
		Help:    "Duration of agent tool calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"tool"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bsdetector_llm_request_duration_seconds",
		Help:    "Duration of LLM requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	AnnotationCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsdetector_annotation_cache_total",
		Help: "Annotation lookups by result (memory_hit, store_hit, miss)",
	}, []string{"result"})

	AnnotationsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsdetector_annotations_generated_total",
		Help: "Annotation generation attempts by outcome",
	}, []string{"outcome"})
)
