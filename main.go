package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"ocrorder/config"
	"ocrorder/loader"
	"ocrorder/logger"
	"ocrorder/metrics"
	"ocrorder/ocr"
	"ocrorder/order"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to the JSON configuration file")
	addr := flag.String("addr", "", "listen address (overrides configuration)")
	processFile := flag.String("process", "", "process one table file and exit")
	latest := flag.Bool("latest", false, "process the newest workbook of the input folder and exit")
	mergeFiles := flag.String("merge", "", "comma separated purchase-order workbooks to merge, then exit")
	flag.Parse()

	boot := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Fatal().Err(err).Str("config", *configPath).Msg("failed to load configuration")
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	log := boot
	if cfg.Paths.LogFile != "" {
		fileLog, closer, err := logger.NewFile(cfg.Paths.LogFile)
		if err != nil {
			boot.Warn().Err(err).Msg("file logging disabled")
		} else {
			defer closer.Close()
			log = fileLog
		}
	}

	for _, dir := range []string{cfg.Paths.InputFolder, cfg.Paths.OutputFolder} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create folder")
		}
	}

	log.Info().Str("path", cfg.Paths.DatabaseFile).Msg("Connecting to database...")
	dbConn, err := sqlx.Open("sqlite3", cfg.Paths.DatabaseFile+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		log.Fatal().Err(err).Msg("db open error")
	}
	defer dbConn.Close()

	if err := loader.InitDatabase(dbConn, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Database initialization failed")
	}
	overrides, err := loader.EffectiveOverrides(dbConn, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read special barcodes")
	}
	log.Info().Msg("Database initialization complete.")

	metrics.Register()
	svc := order.NewService(dbConn, cfg, overrides, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *processFile != "":
		res, err := svc.ProcessPath(ctx, *processFile)
		exitWith(log, res, err)
		return
	case *latest:
		res, err := svc.ProcessLatest(ctx)
		exitWith(log, res, err)
		return
	case *mergeFiles != "":
		res, err := svc.MergeFiles(ctx, strings.Split(*mergeFiles, ","))
		if err != nil {
			log.Fatal().Err(err).Msg("merge failed")
		}
		log.Info().Str("output", res.OutputPath).Int("lines", len(res.Lines)).Msg("merge complete")
		return
	}

	runner := ocr.NewBatchRunner(ocr.NewSidecarRecognizer(cfg.Paths.OutputFolder), cfg.Performance, log)

	mux := http.NewServeMux()
	SetupRoutes(mux, dbConn, cfg, svc, runner, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           withRequestLogger(mux, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Addr).Msg("Starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server start error")
	}
	log.Info().Msg("server stopped")
}

func exitWith(log zerolog.Logger, res order.Result, err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("processing failed")
	}
	log.Info().
		Str("document", res.Document.ID).
		Str("status", res.Document.Status).
		Str("output", res.Document.OutputPath.String).
		Bool("duplicate", res.Duplicate).
		Msg("done")
}
