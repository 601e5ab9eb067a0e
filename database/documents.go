package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"ocrorder/model"
)

// ErrDocumentNotFound is returned when no document has the requested id.
var ErrDocumentNotFound = errors.New("document not found")

const documentColumns = `id, source_name, content_hash, output_path, status, record_count, error_text, processed_at`

func InsertDocumentInTx(tx *sqlx.Tx, d model.Document) error {
	const q = `
		INSERT INTO documents (` + documentColumns + `)
		VALUES (:id, :source_name, :content_hash, :output_path, :status, :record_count, :error_text, :processed_at)
	`
	if _, err := tx.NamedExec(q, d); err != nil {
		return fmt.Errorf("InsertDocumentInTx (ID: %s) failed: %w", d.ID, err)
	}
	return nil
}

// InsertDocument stores a document outside of a transaction, used for
// failed runs that have no lines.
func InsertDocument(db *sqlx.DB, d model.Document) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := InsertDocumentInTx(tx, d); err != nil {
		return err
	}
	return tx.Commit()
}

func GetDocument(db *sqlx.DB, id string) (model.Document, error) {
	var d model.Document
	err := db.Get(&d, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		return d, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return d, nil
}

// FindProcessedByHash returns the most recent successful document with the
// given content hash. ok is false when the content was never processed.
func FindProcessedByHash(db *sqlx.DB, hash string) (d model.Document, ok bool, err error) {
	const q = `
		SELECT ` + documentColumns + ` FROM documents
		WHERE content_hash = ? AND status = ?
		ORDER BY processed_at DESC
		LIMIT 1
	`
	err = db.Get(&d, q, hash, model.DocumentProcessed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, false, nil
		}
		return d, false, fmt.Errorf("FindProcessedByHash failed: %w", err)
	}
	return d, true, nil
}

// ListDocuments returns documents newest first. limit <= 0 means all.
func ListDocuments(db *sqlx.DB, limit int) ([]model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents ORDER BY processed_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var docs []model.Document
	if err := db.Select(&docs, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}
