package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocrorder_documents_total",
			Help: "Documents handled, by outcome.",
		},
		[]string{"status"},
	)

	RowsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocrorder_rows_rejected_total",
			Help: "Rows dropped during extraction, by reason.",
		},
		[]string{"reason"},
	)

	RecordsExtractedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ocrorder_records_extracted_total",
			Help: "Product records produced by extraction.",
		},
	)

	OCRImagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocrorder_ocr_images_total",
			Help: "Images sent to the recognizer, by outcome.",
		},
		[]string{"status"},
	)
)

// Registry holds the collectors of this process only.
var Registry = prometheus.NewRegistry()

var once sync.Once

// Register adds all collectors to Registry. Repeated calls are no-ops.
func Register() {
	once.Do(func() {
		Registry.MustRegister(
			DocumentsTotal,
			RowsRejectedTotal,
			RecordsExtractedTotal,
			OCRImagesTotal,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveExtraction records the outcome of one extraction run.
func ObserveExtraction(records int, skipped map[string]int) {
	RecordsExtractedTotal.Add(float64(records))
	for reason, n := range skipped {
		RowsRejectedTotal.WithLabelValues(reason).Add(float64(n))
	}
}
