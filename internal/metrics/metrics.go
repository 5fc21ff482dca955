package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	WorkflowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regassist_workflows_started_total",
			Help: "Total number of compliance workflows started",
		},
		[]string{"workflow_type"},
	)

	WorkflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regassist_workflows_completed_total",
			Help: "Total number of compliance workflows completed",
		},
		[]string{"workflow_type", "status"},
	)

	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "regassist_workflow_duration_seconds",
			Help:    "Workflow execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"workflow_type"},
	)

	// Supervisor metrics
	SupervisorDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regassist_supervisor_decisions_total",
			Help: "Supervisor routing decisions by terminating rule or route",
		},
		[]string{"rule", "next"},
	)

	OracleFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regassist_oracle_failures_total",
			Help: "Oracle decision failures by reason",
		},
		[]string{"reason"},
	)

	DegradedTerminations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regassist_degraded_terminations_total",
			Help: "Workflows terminated through the deterministic compiler fallback",
		},
		[]string{"workflow_type"},
	)

	// Specialist metrics
	SpecialistExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regassist_specialist_executions_total",
			Help: "Total specialist activity executions",
		},
		[]string{"agent_id", "status"},
	)

	SpecialistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "regassist_specialist_duration_ms",
			Help:    "Specialist execution duration in milliseconds",
			Buckets: []float64{100, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"agent_id"},
	)

	CitationsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regassist_citations_extracted_total",
			Help: "Citations returned by knowledge-chain-backed specialists",
		},
	)

	// Knowledge chain metrics
	ChainBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regassist_chain_builds_total",
			Help: "Knowledge chain builds by domain and outcome",
		},
		[]string{"domain", "status"},
	)

	ChainQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "regassist_chain_query_duration_ms",
			Help:    "Knowledge chain query duration in milliseconds",
			Buckets: []float64{50, 200, 500, 1000, 3000, 10000, 30000},
		},
		[]string{"domain"},
	)

	EmbeddingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regassist_embedding_cache_hits_total",
			Help: "Embedding cache lookups by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	// Extraction metrics
	DocumentsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regassist_documents_parsed_total",
			Help: "Uploaded documents parsed by format and outcome",
		},
		[]string{"format", "status"},
	)
)
