package parsers

import (
	"errors"
	"testing"

	"ocrorder/config"
	"ocrorder/logger"
	"ocrorder/model"
)

func table(labels []string, rows ...[]string) *model.Table {
	t := &model.Table{Labels: labels}
	for i, r := range rows {
		t.Rows = append(t.Rows, model.RawRow{Index: i + 1, Values: cells(r...)})
	}
	return t
}

func TestColumnMapper_Map(t *testing.T) {
	m := NewColumnMapper(config.Default(), logger.Nop())

	tests := []struct {
		name   string
		labels []string
		rows   [][]string
		want   model.ColumnMap
	}{
		{
			name:   "exact labels",
			labels: []string{"行号", "条形码", "商品名称", "规格", "数量", "单位", "单价", "金额"},
			want: model.ColumnMap{
				"barcode": "条形码", "name": "商品名称", "specification": "规格",
				"quantity": "数量", "unit": "单位", "price": "单价", "amount": "金额",
			},
		},
		{
			name:   "normalized labels",
			labels: []string{"条码(必填)", "商品 名称", "采购数量", "单价（必填）"},
			want: model.ColumnMap{
				"barcode": "条码(必填)", "name": "商品名称", "quantity": "采购数量", "price": "单价（必填）",
			},
		},
		{
			name:   "substring labels",
			labels: []string{"商品条码号", "货品名称", "订购数量", "含税单价"},
			want: model.ColumnMap{
				"barcode": "商品条码号", "name": "货品名称", "quantity": "订购数量", "price": "含税单价",
			},
		},
		{
			name:   "gift column not taken by quantity",
			labels: []string{"条码", "数量", "赠送数量"},
			want:   model.ColumnMap{"barcode": "条码", "quantity": "数量", "gift_quantity": "赠送数量"},
		},
		{
			name:   "gift substring label not taken by quantity",
			labels: []string{"条码", "商品名称", "赠送数量(瓶)", "数量(件)", "单价"},
			want: model.ColumnMap{
				"barcode": "条码", "name": "商品名称", "gift_quantity": "赠送数量(瓶)",
				"quantity": "数量(件)", "price": "单价",
			},
		},
		{
			name:   "barcode inferred from leading-zero text",
			labels: []string{"Col_0", "品名"},
			rows: [][]string{
				{"01234565", "饼干"},
				{"0012345678905", "糖果"},
			},
			want: model.ColumnMap{"barcode": "Col_0", "name": "品名"},
		},
		{
			name:   "barcode inferred from values",
			labels: []string{"Col_0", "品名", "数量"},
			rows: [][]string{
				{"6921168509256", "农夫山泉", "2"},
				{"6921168558049.0", "东方树叶", "1"},
				{"", "小计", "3"},
			},
			want: model.ColumnMap{"barcode": "Col_0", "name": "品名", "quantity": "数量"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ApplyHeader collapses inner whitespace before mapping
			labels := make([]string, len(tt.labels))
			for i, l := range tt.labels {
				labels[i] = cleanLabel(l)
			}
			got, err := m.Map(table(labels, tt.rows...))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Map() = %v, want %v", got, tt.want)
			}
			for field, label := range tt.want {
				if got[field] != label {
					t.Errorf("field %s = %q, want %q", field, got[field], label)
				}
			}
		})
	}
}

func TestColumnMapper_MissingBarcode(t *testing.T) {
	m := NewColumnMapper(config.Default(), logger.Nop())
	tbl := table([]string{"品名", "数量"}, []string{"农夫山泉", "2"}, []string{"东方树叶", "x"})

	_, err := m.Map(tbl)
	if !errors.Is(err, ErrBarcodeColumnNotFound) {
		t.Errorf("expected ErrBarcodeColumnNotFound, got %v", err)
	}
}
