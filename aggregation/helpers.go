package aggregation

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"ocrorder/database"
	"ocrorder/mappers"
	"ocrorder/model"
)

// MergeDocuments loads the stored lines of each document and merges them.
// An unknown id is an error.
func MergeDocuments(conn *sqlx.DB, documentIDs []string) ([]model.AggregatedRecord, error) {
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("no documents to merge")
	}

	orders := make([][]model.AggregatedRecord, 0, len(documentIDs))
	for _, id := range documentIDs {
		if _, err := database.GetDocument(conn, id); err != nil {
			return nil, fmt.Errorf("failed to get document %s: %w", id, err)
		}
		lines, err := database.GetOrderLines(conn, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get order lines for %s: %w", id, err)
		}
		orders = append(orders, mappers.ToAggregatedRecords(lines))
	}
	return MergeOrders(orders...), nil
}
