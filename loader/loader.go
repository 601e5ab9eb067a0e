package loader

import (
	"errors"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"ocrorder/config"
	"ocrorder/database"
	"ocrorder/mappers"
	"ocrorder/model"
	"ocrorder/units"
)

// InitDatabase applies the schema and loads the special-barcode CSV named
// in the configuration. A missing CSV is not an error.
func InitDatabase(db *sqlx.DB, cfg config.Config, log zerolog.Logger) error {
	log.Info().Msg("Applying database schema...")
	if err := database.ApplySchema(db); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	path := cfg.Paths.OverridesFile
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", path).Msg("override file not found, skipping")
		return nil
	}

	n, err := LoadOverrides(db, path, log)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("count", n).Msg("special barcodes loaded")
	return nil
}

// LoadOverrides upserts every entry of the CSV at path in one transaction.
func LoadOverrides(db *sqlx.DB, path string, log zerolog.Logger) (n int, err error) {
	overrides, err := units.LoadOverrideFile(path)
	if err != nil {
		return 0, err
	}

	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			log.Error().Err(err).Str("path", path).Msg("rolling back override import")
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	for _, o := range overrides {
		if err = database.UpsertOverrideInTx(tx, mappers.ToOverrideRow(o)); err != nil {
			return 0, err
		}
	}
	return len(overrides), nil
}

// EffectiveOverrides returns the configured overrides with stored entries
// applied on top, so the CSV wins for a barcode present in both.
func EffectiveOverrides(db *sqlx.DB, cfg config.Config) ([]model.BarcodeOverride, error) {
	rows, err := database.GetOverrides(db)
	if err != nil {
		return nil, err
	}
	stored := make([]model.BarcodeOverride, 0, len(rows))
	for _, r := range rows {
		stored = append(stored, mappers.ToBarcodeOverride(r))
	}
	return mappers.MergeOverrides(cfg.Overrides, stored), nil
}
