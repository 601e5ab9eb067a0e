// Package ocr runs table recognition over image files. The recognition
// client is supplied by the caller through Recognizer.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ocrorder/config"
	"ocrorder/metrics"
	"ocrorder/model"
	"ocrorder/parsers"
)

// ErrNoResult is returned when no recognized table exists for an image.
var ErrNoResult = errors.New("no recognition result")

// Recognizer turns one image into table rows.
type Recognizer interface {
	Recognize(ctx context.Context, path string) ([][]model.Cell, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, path string) ([][]model.Cell, error)

func (f RecognizerFunc) Recognize(ctx context.Context, path string) ([][]model.Cell, error) {
	return f(ctx, path)
}

// Result is the outcome for one image. Err is set instead of Rows when
// recognition failed.
type Result struct {
	Path string
	Rows [][]model.Cell
	Err  error
}

// ListImages returns the images directly inside dir whose extension is in
// exts and whose size does not exceed maxMB (0 disables the size check),
// sorted by name.
func ListImages(dir string, exts []string, maxMB int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	allowed := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = struct{}{}
	}
	limit := int64(maxMB) * 1024 * 1024

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := allowed[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		if limit > 0 && info.Size() > limit {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// BatchRunner sends images to a Recognizer in fixed-size batches with a
// bounded number of concurrent calls.
type BatchRunner struct {
	recognizer Recognizer
	workers    int
	batchSize  int
	log        zerolog.Logger
}

func NewBatchRunner(r Recognizer, cfg config.PerformanceConfig, log zerolog.Logger) *BatchRunner {
	workers, batch := cfg.MaxWorkers, cfg.BatchSize
	if workers < 1 {
		workers = 1
	}
	if batch < 1 {
		batch = 1
	}
	return &BatchRunner{
		recognizer: r,
		workers:    workers,
		batchSize:  batch,
		log:        log.With().Str("component", "ocr").Logger(),
	}
}

// Run returns one Result per path in input order. A failed image does not
// stop the others; only cancellation of ctx ends the run early, in which
// case the remaining images carry ctx.Err().
func (b *BatchRunner) Run(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))
	for i, p := range paths {
		results[i].Path = p
	}

	for start := 0; start < len(paths); start += b.batchSize {
		end := start + b.batchSize
		if end > len(paths) {
			end = len(paths)
		}
		if err := ctx.Err(); err != nil {
			for i := start; i < len(paths); i++ {
				results[i].Err = err
			}
			break
		}

		b.log.Info().Int("from", start+1).Int("to", end).Int("total", len(paths)).Msg("recognizing batch")

		var g errgroup.Group
		g.SetLimit(b.workers)
		for i := start; i < end; i++ {
			g.Go(func() error {
				rows, err := b.recognizer.Recognize(ctx, paths[i])
				if err != nil {
					b.log.Warn().Err(err).Str("path", paths[i]).Msg("recognition failed")
					metrics.OCRImagesTotal.WithLabelValues("failed").Inc()
					results[i].Err = err
					return nil
				}
				metrics.OCRImagesTotal.WithLabelValues("ok").Inc()
				results[i].Rows = rows
				return nil
			})
		}
		g.Wait()
	}
	return results
}

// SidecarRecognizer reads the table an external OCR service exported for
// an image: <dir>/<image base name>.xlsx, or .csv when no workbook exists.
type SidecarRecognizer struct {
	dir string
}

func NewSidecarRecognizer(dir string) *SidecarRecognizer {
	return &SidecarRecognizer{dir: dir}
}

func (s *SidecarRecognizer) Recognize(ctx context.Context, path string) ([][]model.Cell, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, ext := range []string{".xlsx", ".csv"} {
		name := filepath.Join(s.dir, base+ext)
		f, err := os.Open(name)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rows, err := parsers.ReadTable(name, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return rows, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoResult, base)
}
