package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PolygonsReadTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regrowth_polygons_read_total",
		Help: "Total single-part polygons read per source",
	}, []string{"source"})
	PolygonsRepairedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regrowth_polygons_repaired_total",
		Help: "Total invalid polygons repaired with a zero-distance buffer",
	}, []string{"source"})
	PolygonsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regrowth_polygons_dropped_total",
		Help: "Total polygons dropped by stage and reason",
	}, []string{"stage", "reason"})
	SamplingPointsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regrowth_sampling_points_total",
		Help: "Total sampling points produced by the grid sampler",
	})
	PixelsBurnedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regrowth_pixels_burned_total",
		Help: "Total mask pixels burned by the rasterizer",
	})
	ChipDownloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regrowth_chip_downloads_total",
		Help: "Chip downloads by outcome",
	}, []string{"status"})
	ChipRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regrowth_chip_retries_total",
		Help: "Total chip download retries",
	})
	StageDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "regrowth_stage_duration_seconds",
		Help:    "Pipeline stage duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"stage", "status"})
)

func init() {
	prometheus.MustRegister(PolygonsReadTotal)
	prometheus.MustRegister(PolygonsRepairedTotal)
	prometheus.MustRegister(PolygonsDroppedTotal)
	prometheus.MustRegister(SamplingPointsTotal)
	prometheus.MustRegister(PixelsBurnedTotal)
	prometheus.MustRegister(ChipDownloadsTotal)
	prometheus.MustRegister(ChipRetriesTotal)
	prometheus.MustRegister(StageDurationSeconds)
}

// Handler exposes the registered collectors for scraping
func Handler() http.Handler { return promhttp.Handler() }
