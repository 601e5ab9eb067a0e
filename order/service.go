// Package order runs the document pipeline: read table, extract, aggregate,
// write the purchase order and record the outcome.
package order

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"ocrorder/aggregation"
	"ocrorder/config"
	"ocrorder/database"
	"ocrorder/export"
	"ocrorder/extract"
	"ocrorder/logger"
	"ocrorder/mappers"
	"ocrorder/metrics"
	"ocrorder/model"
	"ocrorder/ocr"
	"ocrorder/parsers"
	"ocrorder/units"
)

// ErrNoInputFile is returned by ProcessLatest when the input folder holds
// no candidate workbook.
var ErrNoInputFile = errors.New("no input file found")

// Result is the outcome of one document.
type Result struct {
	Document  model.Document
	Lines     []model.AggregatedRecord
	Stats     extract.Stats
	Duplicate bool
}

// MergeResult describes a merged purchase order.
type MergeResult struct {
	OutputPath string
	Lines      []model.AggregatedRecord
}

// Service is safe for concurrent use. SetOverrides swaps the unit engine
// without disturbing documents already in flight.
type Service struct {
	db         *sqlx.DB
	cfg        config.Config
	aggregator *aggregation.Aggregator
	writer     *export.Writer
	log        zerolog.Logger
	now        func() time.Time

	mu        sync.RWMutex
	extractor *extract.Extractor
}

func NewService(db *sqlx.DB, cfg config.Config, overrides []model.BarcodeOverride, log zerolog.Logger) *Service {
	s := &Service{
		db:         db,
		cfg:        cfg,
		aggregator: aggregation.New(log),
		writer:     export.NewWriter(cfg.Paths.TemplateFile, log),
		log:        log.With().Str("component", "order").Logger(),
		now:        time.Now,
	}
	s.SetOverrides(overrides)
	return s
}

// SetOverrides rebuilds the extractor with a new special-barcode list.
func (s *Service) SetOverrides(overrides []model.BarcodeOverride) {
	engine := units.NewEngine(s.cfg.Units, overrides, s.log)
	x := extract.New(s.cfg, engine, s.log)

	s.mu.Lock()
	s.extractor = x
	s.mu.Unlock()
	s.log.Info().Int("overrides", len(overrides)).Msg("unit engine ready")
}

func (s *Service) currentExtractor() *extract.Extractor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.extractor
}

// ProcessFile runs the pipeline over an uploaded table. name selects the
// reader by extension and names the output file.
func (s *Service) ProcessFile(ctx context.Context, name string, r io.Reader) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	hash := contentHash(data)

	if res, ok, err := s.findDuplicate(hash); err != nil {
		return Result{}, err
	} else if ok {
		s.log.Info().Str("file", name).Str("document", res.Document.ID).Msg("content already processed, skipping")
		return res, nil
	}

	rows, err := parsers.ReadTable(name, bytes.NewReader(data))
	if err != nil {
		s.recordFailure(name, hash, err)
		return Result{}, fmt.Errorf("failed to read table %s: %w", name, err)
	}
	return s.ProcessRows(ctx, name, hash, rows)
}

// ProcessPath opens path and runs ProcessFile.
func (s *Service) ProcessPath(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return s.ProcessFile(ctx, filepath.Base(path), f)
}

// ProcessLatest processes the most recently modified workbook of the input
// folder.
func (s *Service) ProcessLatest(ctx context.Context) (Result, error) {
	path, err := LatestFile(s.cfg.Paths.InputFolder)
	if err != nil {
		return Result{}, err
	}
	s.log.Info().Str("file", path).Msg("processing latest input file")
	return s.ProcessPath(ctx, path)
}

// ProcessRows runs extraction and everything after it over a raw table.
// hash identifies the source content.
func (s *Service) ProcessRows(ctx context.Context, name, hash string, rows [][]model.Cell) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	log := s.logFor(ctx).With().Str("file", name).Logger()

	doc := model.Document{
		ID:          uuid.NewString(),
		SourceName:  name,
		ContentHash: hash,
		Status:      model.DocumentProcessed,
		ProcessedAt: s.now().UTC().Format(time.RFC3339Nano),
	}

	records, stats, err := s.currentExtractor().ExtractDocument(rows)
	metrics.ObserveExtraction(len(records), stats.Skipped)
	if err != nil && !extract.IsDocumentSkip(err) {
		s.recordFailure(name, hash, err)
		return Result{}, err
	}

	res := Result{Stats: stats}
	if err != nil || len(records) == 0 {
		doc.Status = model.DocumentEmpty
		if err != nil {
			doc.ErrorText = sql.NullString{String: err.Error(), Valid: true}
		}
		log.Warn().Err(err).Msg("document produced no records")
		if err := database.InsertDocument(s.db, doc); err != nil {
			return Result{}, err
		}
		metrics.DocumentsTotal.WithLabelValues(model.DocumentEmpty).Inc()
		res.Document = doc
		return res, nil
	}

	lines := s.aggregator.Aggregate(records)
	outPath := filepath.Join(s.cfg.Paths.OutputFolder, export.OrderFileName(name))
	if err := s.writer.SaveAs(outPath, lines); err != nil {
		s.recordFailure(name, hash, err)
		return Result{}, err
	}

	doc.OutputPath = sql.NullString{String: outPath, Valid: true}
	doc.RecordCount = len(records)
	if err := s.store(doc, lines); err != nil {
		return Result{}, err
	}
	metrics.DocumentsTotal.WithLabelValues(model.DocumentProcessed).Inc()

	log.Info().
		Str("document", doc.ID).
		Int("records", len(records)).
		Int("lines", len(lines)).
		Str("output", outPath).
		Msg("purchase order created")

	res.Document = doc
	res.Lines = lines
	return res, nil
}

// ImageResult pairs an image with the outcome of its table.
type ImageResult struct {
	Path   string
	Result Result
	Err    error
}

// ProcessImages recognizes every image with runner and processes each
// table. Images already processed are answered from the database without
// recognition. A failed image is reported and the rest continue.
func (s *Service) ProcessImages(ctx context.Context, runner *ocr.BatchRunner, paths []string) []ImageResult {
	out := make([]ImageResult, len(paths))
	hashes := make([]string, len(paths))
	var pending []int
	for i, p := range paths {
		out[i].Path = p
		data, err := os.ReadFile(p)
		if err != nil {
			out[i].Err = err
			continue
		}
		hashes[i] = contentHash(data)
		if res, ok, err := s.findDuplicate(hashes[i]); err != nil || ok {
			out[i].Result, out[i].Err = res, err
			continue
		}
		pending = append(pending, i)
	}

	toRecognize := make([]string, len(pending))
	for j, i := range pending {
		toRecognize[j] = paths[i]
	}
	recognized := runner.Run(ctx, toRecognize)
	for j, r := range recognized {
		i := pending[j]
		if r.Err != nil {
			out[i].Err = r.Err
			continue
		}
		// an identical image earlier in this batch may have been stored
		if res, ok, err := s.findDuplicate(hashes[i]); err != nil || ok {
			out[i].Result, out[i].Err = res, err
			continue
		}
		out[i].Result, out[i].Err = s.ProcessRows(ctx, filepath.Base(r.Path), hashes[i], r.Rows)
	}
	return out
}

// Merge combines stored documents into one purchase order.
func (s *Service) Merge(ctx context.Context, documentIDs []string) (MergeResult, error) {
	if err := ctx.Err(); err != nil {
		return MergeResult{}, err
	}
	lines, err := aggregation.MergeDocuments(s.db, documentIDs)
	if err != nil {
		return MergeResult{}, err
	}
	return s.saveMerged(lines, len(documentIDs))
}

// MergeFiles combines previously exported purchase-order workbooks.
func (s *Service) MergeFiles(ctx context.Context, paths []string) (MergeResult, error) {
	if len(paths) == 0 {
		return MergeResult{}, fmt.Errorf("no files to merge")
	}
	orders := make([][]model.AggregatedRecord, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return MergeResult{}, err
		}
		lines, err := readOrderFile(p)
		if err != nil {
			return MergeResult{}, err
		}
		orders = append(orders, lines)
	}
	return s.saveMerged(aggregation.MergeOrders(orders...), len(paths))
}

func readOrderFile(path string) ([]model.AggregatedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	lines, err := export.ReadPurchaseOrder(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lines, nil
}

func (s *Service) saveMerged(lines []model.AggregatedRecord, sources int) (MergeResult, error) {
	outPath := filepath.Join(s.cfg.Paths.OutputFolder, export.MergeFileName(s.now()))
	if err := s.writer.SaveAs(outPath, lines); err != nil {
		return MergeResult{}, err
	}
	s.log.Info().Int("sources", sources).Int("lines", len(lines)).Str("output", outPath).Msg("orders merged")
	return MergeResult{OutputPath: outPath, Lines: lines}, nil
}

// Documents returns the processing history, newest first.
func (s *Service) Documents(limit int) ([]model.Document, error) {
	return database.ListDocuments(s.db, limit)
}

// Document returns one stored document with its lines.
func (s *Service) Document(id string) (model.Document, []model.AggregatedRecord, error) {
	doc, err := database.GetDocument(s.db, id)
	if err != nil {
		return doc, nil, err
	}
	lines, err := database.GetOrderLines(s.db, id)
	if err != nil {
		return doc, nil, err
	}
	return doc, mappers.ToAggregatedRecords(lines), nil
}

// WriteOrder streams the purchase order of a stored document.
func (s *Service) WriteOrder(w io.Writer, id string) error {
	_, lines, err := s.Document(id)
	if err != nil {
		return err
	}
	return s.writer.WriteTo(w, lines)
}

func (s *Service) findDuplicate(hash string) (Result, bool, error) {
	if !s.cfg.Performance.SkipExisting {
		return Result{}, false, nil
	}
	doc, ok, err := database.FindProcessedByHash(s.db, hash)
	if err != nil || !ok {
		return Result{}, false, err
	}
	if doc.OutputPath.Valid {
		if _, err := os.Stat(doc.OutputPath.String); err != nil {
			// output was removed; process again
			return Result{}, false, nil
		}
	}
	lines, err := database.GetOrderLines(s.db, doc.ID)
	if err != nil {
		return Result{}, false, err
	}
	metrics.DocumentsTotal.WithLabelValues(model.DocumentSkipped).Inc()
	return Result{Document: doc, Lines: mappers.ToAggregatedRecords(lines), Duplicate: true}, true, nil
}

// store writes the document and its lines in one transaction.
func (s *Service) store(doc model.Document, lines []model.AggregatedRecord) (err error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			s.log.Error().Err(err).Str("document", doc.ID).Msg("rolling back document")
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	if err = database.InsertDocumentInTx(tx, doc); err != nil {
		return err
	}
	return database.InsertOrderLinesInTx(tx, mappers.ToOrderLines(doc.ID, lines))
}

func (s *Service) recordFailure(name, hash string, cause error) {
	metrics.DocumentsTotal.WithLabelValues(model.DocumentFailed).Inc()
	doc := model.Document{
		ID:          uuid.NewString(),
		SourceName:  name,
		ContentHash: hash,
		Status:      model.DocumentFailed,
		ErrorText:   sql.NullString{String: cause.Error(), Valid: true},
		ProcessedAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := database.InsertDocument(s.db, doc); err != nil {
		s.log.Error().Err(err).Str("file", name).Msg("failed to record failed document")
	}
	s.log.Error().Err(cause).Str("file", name).Msg("document failed")
}

// logFor prefers the request-scoped logger carried by ctx.
func (s *Service) logFor(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(logger.LoggerKey).(zerolog.Logger); ok {
		return l.With().Str("component", "order").Logger()
	}
	return s.log
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LatestFile returns the most recently modified .xlsx in dir, ignoring
// Office lock files and generated purchase orders.
func LatestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var latest string
	var latestMod time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".xlsx") {
			continue
		}
		if strings.HasPrefix(name, "~$") ||
			strings.HasPrefix(name, export.OrderPrefix) ||
			strings.HasPrefix(name, export.MergePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return "", err
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(dir, name)
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("%w in %s", ErrNoInputFile, dir)
	}
	return latest, nil
}
