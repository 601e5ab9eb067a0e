package loader

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"ocrorder/config"
	"ocrorder/model"
)

// ReloadOverridesHandler re-imports the special-barcode CSV and hands the
// effective list to apply.
func ReloadOverridesHandler(db *sqlx.DB, cfg config.Config, apply func([]model.BarcodeOverride), log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info().Str("path", cfg.Paths.OverridesFile).Msg("HTTP request received: reloading special barcodes")

		if path := cfg.Paths.OverridesFile; path != "" {
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				log.Warn().Str("path", path).Msg("override file not found, skipping")
			} else if _, err := LoadOverrides(db, path, log); err != nil {
				log.Error().Err(err).Msg("override reload failed")
				http.Error(w, "failed to reload special barcodes: "+err.Error(), http.StatusInternalServerError)
				return
			}
		}

		overrides, err := EffectiveOverrides(db, cfg)
		if err != nil {
			log.Error().Err(err).Msg("failed to read overrides")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		apply(overrides)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message":   "special barcodes reloaded",
			"overrides": overrides,
		})
	}
}
