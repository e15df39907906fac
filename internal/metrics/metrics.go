package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/snarg/lecturescribe/internal/extract"
)

const namespace = "lecturescribe"

// HTTP metrics, incremented by InstrumentHandler.
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests processed.",
	}, []string{"method", "path_pattern", "status_code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path_pattern"})
)

// Extraction metrics (incremented per finished lecture by Observe).
var (
	LecturesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lectures_total",
		Help:      "Lectures processed by terminal status.",
	}, []string{"status"})

	LectureDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "lecture_duration_seconds",
		Help:      "Time spent on a single lecture, including settle delays.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8), // 1s → 128s
	}, []string{"status"})

	LecturesSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lectures_skipped_total",
		Help:      "Lectures whose existing transcript was kept.",
	})

	SubtitlesWrittenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subtitles_written_total",
		Help:      "Subtitle files written.",
	})

	SubtitleCuesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subtitle_cues_total",
		Help:      "Subtitle cues converted across all written subtitle files.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		LecturesTotal,
		LectureDuration,
		LecturesSkippedTotal,
		SubtitlesWrittenTotal,
		SubtitleCuesTotal,
	)
}

// Observe records one finished lecture. It matches scheduler.ResultFunc.
func Observe(r extract.Result) {
	status := string(r.Status)
	if r.Skipped {
		LecturesSkippedTotal.Inc()
	}
	LecturesTotal.WithLabelValues(status).Inc()
	LectureDuration.WithLabelValues(status).Observe(r.Duration.Seconds())
	if r.SubtitleKey != "" {
		SubtitlesWrittenTotal.Inc()
		SubtitleCuesTotal.Add(float64(len(r.Subtitles)))
	}
}

// InstrumentHandler returns middleware that records HTTP request metrics.
// It uses chi's route pattern as the path label to avoid cardinality explosion.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)

		pattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(sw.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
