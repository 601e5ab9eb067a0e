package model

import "database/sql"

// Document statuses stored in the documents table. DocumentSkipped is only
// counted in metrics; skipped inputs keep their earlier row.
const (
	DocumentProcessed = "processed"
	DocumentEmpty     = "empty"
	DocumentFailed    = "failed"
	DocumentSkipped   = "skipped"
)

// Document is one row of the documents table.
type Document struct {
	ID          string         `db:"id" json:"id"`
	SourceName  string         `db:"source_name" json:"sourceName"`
	ContentHash string         `db:"content_hash" json:"contentHash"`
	OutputPath  sql.NullString `db:"output_path" json:"-"`
	Status      string         `db:"status" json:"status"`
	RecordCount int            `db:"record_count" json:"recordCount"`
	ErrorText   sql.NullString `db:"error_text" json:"-"`
	ProcessedAt string         `db:"processed_at" json:"processedAt"`
}

// OrderLine is one aggregated line persisted for a document.
type OrderLine struct {
	ID         int    `db:"id" json:"id"`
	DocumentID string `db:"document_id" json:"documentId"`
	LineNo     int    `db:"line_no" json:"lineNo"`
	AggregatedRecord
}

// OverrideRow is the barcode_overrides table representation.
type OverrideRow struct {
	Barcode            string          `db:"barcode"`
	Multiplier         int             `db:"multiplier"`
	TargetUnit         string          `db:"target_unit"`
	FixedPrice         sql.NullFloat64 `db:"fixed_price"`
	FixedSpecification string          `db:"fixed_specification"`
	Description        string          `db:"description"`
}
