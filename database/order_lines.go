package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"ocrorder/model"
)

func InsertOrderLinesInTx(tx *sqlx.Tx, lines []model.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	const q = `
		INSERT INTO order_lines (document_id, line_no, barcode, normal_quantity, normal_price, gift_quantity)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	stmt, err := tx.Preparex(q)
	if err != nil {
		return fmt.Errorf("failed to prepare order line insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range lines {
		if _, err := stmt.Exec(l.DocumentID, l.LineNo, l.Barcode, l.NormalQuantity, l.NormalPrice, l.GiftQuantity); err != nil {
			return fmt.Errorf("InsertOrderLinesInTx (Doc: %s, Line: %d) failed: %w", l.DocumentID, l.LineNo, err)
		}
	}
	return nil
}

func GetOrderLines(db *sqlx.DB, documentID string) ([]model.OrderLine, error) {
	const q = `
		SELECT id, document_id, line_no, barcode, normal_quantity, normal_price, gift_quantity
		FROM order_lines
		WHERE document_id = ?
		ORDER BY line_no
	`
	var lines []model.OrderLine
	if err := db.Select(&lines, q, documentID); err != nil {
		return nil, fmt.Errorf("failed to get order lines for %s: %w", documentID, err)
	}
	return lines, nil
}
