package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/23skdu/longbow-seq2seq/internal/tokenizer"
)

func TestPairValidate(t *testing.T) {
	tests := []struct {
		name    string
		pair    Pair
		wantErr bool
	}{
		{"valid", Pair{"hello", "world"}, false},
		{"empty source", Pair{"", "world"}, true},
		{"empty target", Pair{"hello", ""}, true},
		{"non-ascii source", Pair{"héllo", "world"}, true},
		{"non-ascii target", Pair{"hello", "wörld"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pair.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPair) {
				t.Errorf("expected ErrInvalidPair, got %v", err)
			}
		})
	}

	err := Pair{"ok", "bad\x80"}.Validate()
	if !errors.Is(err, tokenizer.ErrOutOfVocabulary) {
		t.Errorf("expected wrapped ErrOutOfVocabulary, got %v", err)
	}
}

func TestMemoryBatches(t *testing.T) {
	pairs := make([]Pair, 10)
	for i := range pairs {
		pairs[i] = Pair{Source: string(rune('a' + i)), Target: string(rune('A' + i))}
	}
	m, err := NewMemory(pairs, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 10 {
		t.Fatalf("expected 10 pairs, got %d", m.Len())
	}

	batches := m.Batches(1)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	sizes := []int{len(batches[0]), len(batches[1]), len(batches[2])}
	if !reflect.DeepEqual(sizes, []int{4, 4, 2}) {
		t.Errorf("unexpected batch sizes %v", sizes)
	}

	seen := map[Pair]bool{}
	for _, b := range batches {
		for _, p := range b {
			seen[p] = true
		}
	}
	if len(seen) != 10 {
		t.Errorf("every pair should appear once, saw %d distinct", len(seen))
	}

	if !reflect.DeepEqual(m.Batches(1), batches) {
		t.Error("same epoch should give the same order")
	}
	if reflect.DeepEqual(m.Batches(2), batches) && reflect.DeepEqual(m.Batches(3), batches) {
		t.Error("order should change between epochs")
	}
}

func TestMemoryDoesNotAlias(t *testing.T) {
	pairs := []Pair{{"a", "b"}, {"c", "d"}}
	m, err := NewMemory(pairs, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	pairs[0].Source = "z"
	for _, b := range m.Batches(1) {
		if b[0].Source == "z" {
			t.Fatal("supplier should keep its own copy")
		}
	}
}

func TestNewMemoryErrors(t *testing.T) {
	if _, err := NewMemory(Demo(), 0, 1); err == nil {
		t.Error("expected error for zero batch size")
	}
	if _, err := NewMemory([]Pair{{"ok", "ok"}, {"", "x"}}, 2, 1); !errors.Is(err, ErrInvalidPair) {
		t.Errorf("expected ErrInvalidPair, got %v", err)
	}
}

func TestDemo(t *testing.T) {
	pairs := Demo()
	if len(pairs) == 0 {
		t.Fatal("demo corpus is empty")
	}
	for _, p := range pairs {
		if err := p.Validate(); err != nil {
			t.Errorf("demo pair %q: %v", p.Source, err)
		}
		if reverse(p.Target) != p.Source {
			t.Errorf("target of %q should be its reverse, got %q", p.Source, p.Target)
		}
	}
}

func TestReadTSV(t *testing.T) {
	in := "hello\tworld\nhow are you\tI am fine.\nsay \"hi\"\tok\n"
	pairs, err := ReadTSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadTSV: %v", err)
	}
	want := []Pair{
		{"hello", "world"},
		{"how are you", "I am fine."},
		{"say \"hi\"", "ok"},
	}
	if !reflect.DeepEqual(pairs, want) {
		t.Errorf("got %q, want %q", pairs, want)
	}
}

func TestReadTSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty target", "hello\t\n"},
		{"non-ascii", "hello\tworld\ncafé\tcoffee\n"},
		{"missing column", "hello\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadTSV(strings.NewReader(tt.in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadTSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.tsv")
	if err := os.WriteFile(path, []byte("abc\tcba\nxy\tyx\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pairs, err := LoadTSV(path)
	if err != nil {
		t.Fatalf("LoadTSV: %v", err)
	}
	if len(pairs) != 2 || pairs[1] != (Pair{"xy", "yx"}) {
		t.Errorf("unexpected pairs %q", pairs)
	}

	if _, err := LoadTSV(filepath.Join(t.TempDir(), "missing.tsv")); err == nil {
		t.Error("expected error for missing file")
	}
}
