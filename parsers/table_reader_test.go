package parsers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestReadWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"条码", "品名", "数量"}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow(sheet, "A2", &[]interface{}{6921168509256, "农夫山泉", 2}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow(sheet, "A3", &[]interface{}{"6921168558049"}); err != nil {
		t.Fatal(err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	rows, err := ReadTable("ocr.xlsx", buf)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if !rows[1][0].Numeric || rows[1][0].Number != 6921168509256 {
		t.Errorf("barcode cell = %+v", rows[1][0])
	}
	if rows[1][1].String() != "农夫山泉" {
		t.Errorf("name cell = %+v", rows[1][1])
	}
	if len(rows[2]) != 3 {
		t.Errorf("short row not padded: %d", len(rows[2]))
	}
}

func TestReadCSV(t *testing.T) {
	text := "条码,品名,数量\n6921168509256,农夫山泉,2\n"

	t.Run("utf8 with bom", func(t *testing.T) {
		rows, err := ReadTable("a.csv", strings.NewReader("\ufeff"+text))
		if err != nil {
			t.Fatalf("ReadTable: %v", err)
		}
		if rows[0][0].String() != "条码" {
			t.Errorf("first label = %q", rows[0][0].String())
		}
	})

	t.Run("gb18030", func(t *testing.T) {
		encoded, err := simplifiedchinese.GB18030.NewEncoder().String(text)
		if err != nil {
			t.Fatal(err)
		}
		rows, err := ReadCSV(bytes.NewReader([]byte(encoded)))
		if err != nil {
			t.Fatalf("ReadCSV: %v", err)
		}
		if rows[1][1].String() != "农夫山泉" {
			t.Errorf("name = %q", rows[1][1].String())
		}
	})
}

func TestReadTable_Unsupported(t *testing.T) {
	if _, err := ReadTable("scan.xls", strings.NewReader("")); err == nil {
		t.Error("expected error for .xls")
	}
}
