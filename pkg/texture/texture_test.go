package texture

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestTable_Lookup(t *testing.T) {
	table := NewTable(map[string]string{
		"Body":   "textures/allied/body.tga",
		"helmet": "textures/allied/helmet.tga",
	})

	tests := []struct {
		surface string
		want    string
		wantOK  bool
	}{
		{"body", "textures/allied/body.tga", true},
		{"BODY", "textures/allied/body.tga", true},
		{"helmet", "textures/allied/helmet.tga", true},
		{"boots", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.surface, func(t *testing.T) {
			got, ok := table.Lookup(tt.surface)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("got (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}

	if got := table.Surfaces(); !reflect.DeepEqual(got, []string{"body", "helmet"}) {
		t.Errorf("Surfaces() = %v", got)
	}
}

func TestTable_Nil(t *testing.T) {
	var table *Table
	if _, ok := table.Lookup("body"); ok {
		t.Error("nil table should miss")
	}
	if table.Len() != 0 {
		t.Error("nil table should be empty")
	}

	var r Resolver = NewTable(nil)
	if _, ok := r.Lookup("body"); ok {
		t.Error("empty table should miss")
	}
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "textures.yaml")
	data := []byte("surfaces:\n  body: textures/body.tga\n  Visor: textures/visor.tga\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
	if got, _ := table.Lookup("visor"); got != "textures/visor.tga" {
		t.Errorf("Lookup(visor) = %q", got)
	}

	out := filepath.Join(dir, "copy.yaml")
	if err := table.Save(out); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	again, err := LoadTable(out)
	if err != nil {
		t.Fatalf("LoadTable(copy) failed: %v", err)
	}
	if !reflect.DeepEqual(again, table) {
		t.Error("saved table differs")
	}
}

func TestLoadTable_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadTable(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("surfaces: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTable(bad); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
