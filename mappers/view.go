package mappers

import (
	"path/filepath"

	"ocrorder/model"
)

// DocumentView is the JSON shape of a processed document.
type DocumentView struct {
	model.Document
	OutputFile string `json:"outputFile,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OrderView is returned after an upload: the document and its order lines.
type OrderView struct {
	DocumentView
	Skipped   map[string]int           `json:"skipped,omitempty"`
	Lines     []model.AggregatedRecord `json:"lines"`
	Duplicate bool                     `json:"duplicate,omitempty"`
}

// MergeView describes a merged purchase order.
type MergeView struct {
	DocumentIDs []string                 `json:"documentIds"`
	OutputFile  string                   `json:"outputFile"`
	Lines       []model.AggregatedRecord `json:"lines"`
}

func ToDocumentView(d model.Document) DocumentView {
	v := DocumentView{Document: d}
	if d.OutputPath.Valid {
		v.OutputFile = filepath.Base(d.OutputPath.String)
	}
	if d.ErrorText.Valid {
		v.Error = d.ErrorText.String
	}
	return v
}

func ToDocumentViews(docs []model.Document) []DocumentView {
	views := make([]DocumentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, ToDocumentView(d))
	}
	return views
}
