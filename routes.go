package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"ocrorder/config"
	"ocrorder/loader"
	"ocrorder/logger"
	"ocrorder/mappers"
	"ocrorder/metrics"
	"ocrorder/ocr"
	"ocrorder/order"
)

func SetupRoutes(mux *http.ServeMux, dbConn *sqlx.DB, cfg config.Config, svc *order.Service, runner *ocr.BatchRunner, log zerolog.Logger) {
	mux.HandleFunc("POST /api/orders/upload", order.UploadHandler(svc, log))
	mux.HandleFunc("POST /api/orders/latest", processLatestHandler(svc, log))
	mux.HandleFunc("GET /api/orders/{id}/download", order.DownloadHandler(svc, log))
	mux.HandleFunc("POST /api/orders/merge", order.MergeHandler(svc, log))
	mux.HandleFunc("GET /api/documents", order.DocumentsHandler(svc, log))

	mux.HandleFunc("POST /api/ocr/run", order.OCRRunHandler(svc, runner,
		cfg.Paths.InputFolder, cfg.Files.ImageExtensions, cfg.Files.MaxImageSizeMB, log))

	mux.HandleFunc("POST /api/overrides/reload", loader.ReloadOverridesHandler(dbConn, cfg, svc.SetOverrides, log))

	mux.HandleFunc("GET /api/config", GetConfigHandler(cfg))
	mux.Handle("GET /metrics", metrics.Handler())
}

func processLatestHandler(svc *order.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.ProcessLatest(r.Context())
		if err != nil {
			if errors.Is(err, order.ErrNoInputFile) {
				writeJSONError(w, err.Error(), http.StatusNotFound)
				return
			}
			log.Error().Err(err).Msg("latest file processing failed")
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		writeOrder(w, res)
	}
}

func writeOrder(w http.ResponseWriter, res order.Result) {
	view := mappers.OrderView{
		DocumentView: mappers.ToDocumentView(res.Document),
		Skipped:      res.Stats.Skipped,
		Lines:        res.Lines,
		Duplicate:    res.Duplicate,
	}
	encodeJSON(w, view)
}

// withRequestLogger tags every request with an id and puts the logger in
// the request context.
func withRequestLogger(next http.Handler, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLog := logger.WithFields(log, map[string]interface{}{
			"request_id": uuid.NewString(),
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), reqLog)))
		reqLog.Debug().Dur("elapsed", time.Since(start)).Msg("request served")
	})
}
