package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 各子系统运行指标
var (
	ReportsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkgazer_reports_ingested_total",
		Help: "Number of occupancy reports accepted, by kind",
	}, []string{"kind"})

	AggregationRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkgazer_aggregation_runs_total",
		Help: "Number of full aggregation batch runs",
	})

	AggregationLotErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkgazer_aggregation_lot_errors_total",
		Help: "Number of per-lot failures during aggregation batches",
	})

	AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parkgazer_aggregation_duration_seconds",
		Help:    "Duration of full aggregation batch runs",
		Buckets: prometheus.DefBuckets,
	})

	PredictionsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkgazer_predictions_generated_total",
		Help: "Number of hourly forecasts written",
	})

	TrainingRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkgazer_training_runs_total",
		Help: "Number of model training runs, by outcome",
	}, []string{"outcome"})

	TrainingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parkgazer_training_duration_seconds",
		Help:    "Duration of model training runs",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	})

	RecommendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkgazer_recommend_requests_total",
		Help: "Number of recommendation requests, by resulting view state",
	}, []string{"view_state"})

	GeofenceEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkgazer_geofence_events_total",
		Help: "Number of geofence events emitted, by type",
	}, []string{"type"})
)
