package order

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ocrorder/export"
	"ocrorder/logger"
	"ocrorder/mappers"
	"ocrorder/ocr"
)

func newTestMux(svc *Service) *http.ServeMux {
	log := logger.Nop()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orders/upload", UploadHandler(svc, log))
	mux.HandleFunc("GET /api/orders/{id}/download", DownloadHandler(svc, log))
	mux.HandleFunc("GET /api/documents", DocumentsHandler(svc, log))
	mux.HandleFunc("POST /api/orders/merge", MergeHandler(svc, log))
	return mux
}

func uploadRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/orders/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type uploadResponse struct {
	Message string `json:"message"`
	Results []struct {
		Filename string             `json:"filename"`
		Error    string             `json:"error"`
		Order    *mappers.OrderView `json:"order"`
	} `json:"results"`
}

func TestHandlers(t *testing.T) {
	svc, _ := newTestService(t)
	mux := newTestMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, uploadRequest(t, map[string]string{"a.csv": orderCSV, "scan.pdf": "x"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	var up uploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&up); err != nil {
		t.Fatal(err)
	}
	if len(up.Results) != 2 {
		t.Fatalf("results = %+v", up.Results)
	}
	var docID string
	for _, r := range up.Results {
		switch r.Filename {
		case "a.csv":
			if r.Order == nil || len(r.Order.Lines) != 2 || r.Order.OutputFile != "采购单_a.xlsx" {
				t.Errorf("a.csv result = %+v", r)
			} else {
				docID = r.Order.ID
			}
		case "scan.pdf":
			if r.Error == "" {
				t.Error("expected error for scan.pdf")
			}
		}
	}
	if docID == "" {
		t.Fatal("no document id returned")
	}

	t.Run("documents", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents?limit=10", nil))
		var docs []mappers.DocumentView
		if err := json.NewDecoder(rec.Body).Decode(&docs); err != nil {
			t.Fatal(err)
		}
		if len(docs) != 2 {
			t.Errorf("documents = %+v", docs)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents?limit=x", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("download", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/"+docID+"/download", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Header().Get("Content-Disposition"), "attachment") {
			t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
		}
		lines, err := export.ReadPurchaseOrder(rec.Body)
		if err != nil || len(lines) != 2 {
			t.Errorf("downloaded lines = %+v, err = %v", lines, err)
		}
	})

	t.Run("download unknown", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/nope/download", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("merge", func(t *testing.T) {
		body := `{"documentIds":["` + docID + `"]}`
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/merge", strings.NewReader(body)))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		lines, err := export.ReadPurchaseOrder(rec.Body)
		if err != nil || len(lines) != 2 {
			t.Errorf("merged lines = %+v, err = %v", lines, err)
		}
	})

	t.Run("merge without ids", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/merge", strings.NewReader(`{}`)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestOCRRunHandler_EmptyFolder(t *testing.T) {
	svc, cfg := newTestService(t)
	runner := ocr.NewBatchRunner(ocr.NewSidecarRecognizer(t.TempDir()), cfg.Performance, logger.Nop())
	h := OCRRunHandler(svc, runner, t.TempDir(), cfg.Files.ImageExtensions, cfg.Files.MaxImageSizeMB, logger.Nop())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/ocr/run", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "0 image(s)") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
