package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reasons and failure stages used as label values.
const (
	StageCompose = "compose"
	StageDecode  = "decode"
	StageUpload  = "upload"
	StagePublish = "publish"
	StageRecord  = "record"
)

var (
	RecordsFetched = promauto.NewCounter(prom.CounterOpts{
		Name: "poster_records_fetched_total",
		Help: "Arrest records returned by the source feed",
	})

	RecordsSkipped = promauto.NewCounterVec(prom.CounterOpts{
		Name: "poster_records_skipped_total",
		Help: "Arrest records dropped before publishing, by reason",
	}, []string{"reason"})

	PostsPublished = promauto.NewCounter(prom.CounterOpts{
		Name: "poster_posts_published_total",
		Help: "Posts successfully published to the page feed",
	})

	PostsFailed = promauto.NewCounterVec(prom.CounterOpts{
		Name: "poster_posts_failed_total",
		Help: "Records that failed to publish, by pipeline stage",
	}, []string{"stage"})

	LastBatchSize = promauto.NewGauge(prom.GaugeOpts{
		Name: "poster_last_batch_size",
		Help: "Number of identifiers in the most recently persisted batch",
	})

	RunDuration = promauto.NewHistogram(prom.HistogramOpts{
		Name:    "poster_run_duration_seconds",
		Help:    "Duration of complete poster runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})
)
