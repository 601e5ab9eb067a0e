package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"ocrorder/model"
)

// UpsertOverrideInTx inserts a special barcode or replaces the stored entry.
func UpsertOverrideInTx(tx *sqlx.Tx, o model.OverrideRow) error {
	const q = `
		INSERT INTO barcode_overrides (barcode, multiplier, target_unit, fixed_price, fixed_specification, description)
		VALUES (:barcode, :multiplier, :target_unit, :fixed_price, :fixed_specification, :description)
		ON CONFLICT(barcode) DO UPDATE SET
			multiplier = excluded.multiplier,
			target_unit = excluded.target_unit,
			fixed_price = excluded.fixed_price,
			fixed_specification = excluded.fixed_specification,
			description = excluded.description
	`
	if _, err := tx.NamedExec(q, o); err != nil {
		return fmt.Errorf("UpsertOverrideInTx (Barcode: %s) failed: %w", o.Barcode, err)
	}
	return nil
}

func GetOverrides(db *sqlx.DB) ([]model.OverrideRow, error) {
	var rows []model.OverrideRow
	const q = `
		SELECT barcode, multiplier, target_unit, fixed_price, fixed_specification, description
		FROM barcode_overrides
		ORDER BY barcode
	`
	if err := db.Select(&rows, q); err != nil {
		return nil, fmt.Errorf("failed to get barcode overrides: %w", err)
	}
	return rows, nil
}
