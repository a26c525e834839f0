package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    filesProcessed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "airenamer",
            Name:      "files_processed_total",
            Help:      "Total files processed by result (success, failed, skipped)",
        },
        []string{"result"},
    )

    providerReqs = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "airenamer",
            Name:      "provider_requests_total",
            Help:      "Total AI provider requests by provider and result",
        },
        []string{"provider", "result"},
    )

    providerLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "airenamer",
            Name:      "provider_request_duration_seconds",
            Help:      "Duration of AI provider requests by provider",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"provider"},
    )

    retriesTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "airenamer",
            Name:      "retries_total",
            Help:      "Total number of AI call retries",
        },
    )

    extractionStages = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "airenamer",
            Name:      "extraction_stage_total",
            Help:      "Extraction outcomes by final stage (text_layer, alt_reader, ocr, image_ocr, terminal)",
        },
        []string{"stage"},
    )

    fallbackNames = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "airenamer",
            Name:      "fallback_names_total",
            Help:      "Fallback filenames synthesized, by reason (network, other, empty)",
        },
        []string{"reason"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(filesProcessed, providerReqs, providerLatency, retriesTotal, extractionStages, fallbackNames)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncProcessed(result string) { filesProcessed.WithLabelValues(result).Inc() }
func IncRetry()                  { retriesTotal.Inc() }
func IncExtractionStage(stage string) { extractionStages.WithLabelValues(stage).Inc() }
func IncFallbackName(reason string)   { fallbackNames.WithLabelValues(reason).Inc() }

func ObserveProvider(provider, result string, dur time.Duration) {
    providerReqs.WithLabelValues(provider, result).Inc()
    providerLatency.WithLabelValues(provider).Observe(dur.Seconds())
}
