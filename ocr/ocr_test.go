package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ocrorder/config"
	"ocrorder/logger"
	"ocrorder/model"
)

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	files := map[string]int{
		"b.jpg":     10,
		"a.PNG":     10,
		"c.txt":     10,
		"big.jpeg":  2 * 1024 * 1024,
		"d.bmp":     0,
		"notes.pdf": 10,
	}
	for name, size := range files {
		if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := ListImages(dir, []string{".jpg", ".jpeg", ".png", ".bmp"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, p := range got {
		names = append(names, filepath.Base(p))
	}
	if strings.Join(names, ",") != "a.PNG,b.jpg,d.bmp" {
		t.Errorf("ListImages = %v", names)
	}
}

func TestBatchRunner_OrderAndErrors(t *testing.T) {
	var inFlight, peak int32
	rec := RecognizerFunc(func(ctx context.Context, path string) ([][]model.Cell, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		if strings.HasPrefix(filepath.Base(path), "bad") {
			return nil, errors.New("unreadable")
		}
		return [][]model.Cell{{model.TextCell(path)}}, nil
	})

	paths := []string{"1.jpg", "bad2.jpg", "3.jpg", "4.jpg", "5.jpg", "6.jpg", "7.jpg"}
	runner := NewBatchRunner(rec, config.PerformanceConfig{MaxWorkers: 2, BatchSize: 3}, logger.Nop())
	results := runner.Run(context.Background(), paths)

	if len(results) != len(paths) {
		t.Fatalf("got %d results", len(results))
	}
	for i, r := range results {
		if r.Path != paths[i] {
			t.Errorf("result %d path = %s, want %s", i, r.Path, paths[i])
		}
		if paths[i] == "bad2.jpg" {
			if r.Err == nil {
				t.Error("expected error for bad2.jpg")
			}
			continue
		}
		if r.Err != nil || r.Rows[0][0].Text != paths[i] {
			t.Errorf("result %d = %+v", i, r)
		}
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestBatchRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	rec := RecognizerFunc(func(ctx context.Context, path string) ([][]model.Cell, error) {
		called = true
		return nil, nil
	})
	results := NewBatchRunner(rec, config.PerformanceConfig{MaxWorkers: 1, BatchSize: 1}, logger.Nop()).
		Run(ctx, []string{"a.jpg", "b.jpg"})

	if called {
		t.Error("recognizer called after cancellation")
	}
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("%s err = %v", r.Path, r.Err)
		}
	}
}

func TestSidecarRecognizer(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "scan1.csv"), []byte("条码,数量\n6900000000001,2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	r := NewSidecarRecognizer(dir)

	rows, err := r.Recognize(context.Background(), "/images/scan1.jpg")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(rows) != 2 || rows[1][0].Text != "6900000000001" {
		t.Errorf("rows = %+v", rows)
	}

	if _, err := r.Recognize(context.Background(), "/images/scan2.jpg"); !errors.Is(err, ErrNoResult) {
		t.Errorf("missing result err = %v", err)
	}
}
