package source

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func drain(t *testing.T, s Source) []Batch {
	t.Helper()
	cur, err := s.Batches(context.Background())
	if err != nil {
		t.Fatalf("Batches() error: %v", err)
	}
	defer cur.Close()

	var out []Batch
	for {
		b, err := cur.Next(context.Background())
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		out = append(out, b)
	}
}

func TestMemory_Batching(t *testing.T) {
	xs := make([]float64, 10)
	ys := make([]float64, 10)
	m := FromXY(xs, ys)
	m.BatchSize = 4

	batches := drain(t, m)

	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	sizes := []int{4, 4, 2}
	for i, b := range batches {
		if b.Len() != sizes[i] {
			t.Errorf("batch %d Len() = %d, want %d", i, b.Len(), sizes[i])
		}
	}
}

func TestMemory_Rescan(t *testing.T) {
	m := FromXY([]float64{1, 2}, []float64{3, 4})

	// Two scans see the same data; the auto-range pass depends on this.
	for scan := 0; scan < 2; scan++ {
		batches := drain(t, m)
		if len(batches) != 1 {
			t.Fatalf("scan %d: %d batches, want 1", scan, len(batches))
		}
		xs, err := batches[0].Float("x")
		if err != nil {
			t.Fatalf("Float(x) error: %v", err)
		}
		if xs[0] != 1 || xs[1] != 2 {
			t.Errorf("scan %d: xs = %v, want [1 2]", scan, xs)
		}
	}
}

func TestMemory_UnknownColumn(t *testing.T) {
	m := FromXY([]float64{1}, []float64{2})
	batches := drain(t, m)

	if _, err := batches[0].Float("z"); err == nil {
		t.Error("Float(z) error = nil, want error")
	}
	if err := RequireColumns(m, "x", "y"); err != nil {
		t.Errorf("RequireColumns(x, y) error: %v", err)
	}
	if err := RequireColumns(m, "value"); err == nil {
		t.Error("RequireColumns(value) error = nil, want error")
	}
}

func TestMemory_MismatchedColumns(t *testing.T) {
	m := NewMemory()
	m.AddFloat("x", []float64{1, 2, 3})
	m.AddFloat("y", []float64{1})

	if _, err := m.Batches(context.Background()); err == nil {
		t.Error("Batches() error = nil for ragged columns, want error")
	}
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCSV_Columns(t *testing.T) {
	path := writeCSV(t, "x,y,cat\n1,2,a\n3,4,b\n")
	s, err := OpenCSV(path)
	if err != nil {
		t.Fatalf("OpenCSV() error: %v", err)
	}

	cols := s.Columns()
	want := []string{"x", "y", "cat"}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("Columns() = %v, want %v", cols, want)
		}
	}
}

func TestCSV_ParsesAndBatches(t *testing.T) {
	path := writeCSV(t, "x,y\n1,10\n2,20\n3,30\n")
	s, err := OpenCSV(path)
	if err != nil {
		t.Fatalf("OpenCSV() error: %v", err)
	}
	s.BatchSize = 2

	batches := drain(t, s)
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}

	xs, err := batches[0].Float("x")
	if err != nil {
		t.Fatalf("Float(x) error: %v", err)
	}
	if xs[0] != 1 || xs[1] != 2 {
		t.Errorf("xs = %v, want [1 2]", xs)
	}
}

func TestCSV_UnparseableCellIsNaN(t *testing.T) {
	path := writeCSV(t, "x,y\noops,2\n")
	s, err := OpenCSV(path)
	if err != nil {
		t.Fatalf("OpenCSV() error: %v", err)
	}

	batches := drain(t, s)
	xs, err := batches[0].Float("x")
	if err != nil {
		t.Fatalf("Float(x) error: %v", err)
	}
	if !math.IsNaN(xs[0]) {
		t.Errorf("xs[0] = %v, want NaN", xs[0])
	}
}

func TestCSV_StrColumn(t *testing.T) {
	path := writeCSV(t, "x,cat\n1,alpha\n2,beta\n")
	s, err := OpenCSV(path)
	if err != nil {
		t.Fatalf("OpenCSV() error: %v", err)
	}

	batches := drain(t, s)
	cats, err := batches[0].Str("cat")
	if err != nil {
		t.Fatalf("Str(cat) error: %v", err)
	}
	if cats[0] != "alpha" || cats[1] != "beta" {
		t.Errorf("cats = %v, want [alpha beta]", cats)
	}
}
