package order

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"ocrorder/database"
	"ocrorder/export"
	"ocrorder/mappers"
	"ocrorder/ocr"
)

const maxUploadSize = 32 << 20

func respondJSON(w http.ResponseWriter, v interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func respondJSONError(w http.ResponseWriter, log zerolog.Logger, message string, statusCode int) {
	log.Warn().Int("status", statusCode).Msg(message)
	respondJSON(w, map[string]interface{}{
		"message": message,
		"results": []interface{}{},
	}, statusCode)
}

func toOrderView(res Result) mappers.OrderView {
	return mappers.OrderView{
		DocumentView: mappers.ToDocumentView(res.Document),
		Skipped:      res.Stats.Skipped,
		Lines:        res.Lines,
		Duplicate:    res.Duplicate,
	}
}

// UploadHandler accepts one or more tables in the multipart field "file"
// and returns one result per file. A failing file does not stop the rest.
func UploadHandler(svc *Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info().Msg("Received order upload request...")

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			respondJSONError(w, log, "File upload error: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		files := r.MultipartForm.File["file"]
		if len(files) == 0 {
			respondJSONError(w, log, "no file uploaded", http.StatusBadRequest)
			return
		}

		var results []map[string]interface{}
		for _, fh := range files {
			fileResult := map[string]interface{}{"filename": fh.Filename}

			file, err := fh.Open()
			if err != nil {
				fileResult["error"] = "failed to open file: " + err.Error()
				results = append(results, fileResult)
				continue
			}
			res, err := svc.ProcessFile(r.Context(), fh.Filename, file)
			file.Close()
			if err != nil {
				fileResult["error"] = err.Error()
				results = append(results, fileResult)
				continue
			}
			fileResult["order"] = toOrderView(res)
			results = append(results, fileResult)
		}

		respondJSON(w, map[string]interface{}{
			"message": strconv.Itoa(len(files)) + " file(s) processed",
			"results": results,
		}, http.StatusOK)
	}
}

// DownloadHandler serves the purchase order of a stored document.
func DownloadHandler(svc *Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		doc, _, err := svc.Document(id)
		if err != nil {
			if errors.Is(err, database.ErrDocumentNotFound) {
				respondJSONError(w, log, "document not found: "+id, http.StatusNotFound)
				return
			}
			respondJSONError(w, log, err.Error(), http.StatusInternalServerError)
			return
		}

		name := export.OrderFileName(doc.SourceName)
		setAttachment(w, name)
		if err := svc.WriteOrder(w, id); err != nil {
			log.Error().Err(err).Str("document", id).Msg("failed to write order")
		}
	}
}

// DocumentsHandler lists processed documents, newest first. The optional
// "limit" query parameter caps the list.
func DocumentsHandler(svc *Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				respondJSONError(w, log, "invalid limit: "+v, http.StatusBadRequest)
				return
			}
			limit = n
		}
		docs, err := svc.Documents(limit)
		if err != nil {
			respondJSONError(w, log, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, mappers.ToDocumentViews(docs), http.StatusOK)
	}
}

type mergeRequest struct {
	DocumentIDs []string `json:"documentIds"`
}

// MergeHandler merges stored documents and returns the merged workbook.
func MergeHandler(svc *Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mergeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, log, "invalid request body", http.StatusBadRequest)
			return
		}
		if len(req.DocumentIDs) == 0 {
			respondJSONError(w, log, "documentIds is required", http.StatusBadRequest)
			return
		}

		res, err := svc.Merge(r.Context(), req.DocumentIDs)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, database.ErrDocumentNotFound) {
				status = http.StatusNotFound
			}
			respondJSONError(w, log, err.Error(), status)
			return
		}

		setAttachment(w, filepath.Base(res.OutputPath))
		http.ServeFile(w, r, res.OutputPath)
	}
}

// OCRRunHandler recognizes the images of dir and processes each table.
func OCRRunHandler(svc *Service, runner *ocr.BatchRunner, dir string, exts []string, maxMB int, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paths, err := ocr.ListImages(dir, exts, maxMB)
		if err != nil {
			respondJSONError(w, log, err.Error(), http.StatusInternalServerError)
			return
		}
		log.Info().Int("images", len(paths)).Str("dir", dir).Msg("OCR run requested")

		var results []map[string]interface{}
		for _, ir := range svc.ProcessImages(r.Context(), runner, paths) {
			item := map[string]interface{}{"image": filepath.Base(ir.Path)}
			if ir.Err != nil {
				item["error"] = ir.Err.Error()
			} else {
				item["order"] = toOrderView(ir.Result)
			}
			results = append(results, item)
		}
		respondJSON(w, map[string]interface{}{
			"message": strconv.Itoa(len(paths)) + " image(s) processed",
			"results": results,
		}, http.StatusOK)
	}
}

func setAttachment(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
}
