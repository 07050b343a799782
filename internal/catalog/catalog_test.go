package catalog

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	f := excelize.NewFile()
	sheet := "设置"
	if _, err := f.NewSheet(sheet); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	seed := [][]interface{}{
		{"商品", "类别", "价格"},
		{"Картридж 052", "картридж", 990},
		{"Тонер", "тонер", ""},
		{"", "пусто", 1},
		{"Бумага офисная", "", ""},
	}
	for i, row := range seed {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	_ = f.Close()

	entries, err := Load(path, sheet, zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// 空名称行被跳过
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3: %+v", len(entries), entries)
	}
	if entries[0].Name != "Картридж 052" || entries[0].Category != "картридж" || entries[0].ReferencePrice != 990 {
		t.Fatalf("entry 0 = %+v", entries[0])
	}
	if entries[2].Name != "Бумага офисная" || entries[2].Category != "" {
		t.Fatalf("entry 2 = %+v", entries[2])
	}
}

func TestLoadMissingSheet(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	f := excelize.NewFile()
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	_ = f.Close()

	if _, err := Load(path, "设置", zap.NewNop()); err == nil {
		t.Fatal("missing sheet must fail")
	}
}
