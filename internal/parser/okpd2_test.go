package parser_test

import (
	"testing"

	"zakupki/ingest-service/internal/parser"
)

func TestCodeSet_Matches(t *testing.T) {
	set := parser.NewCodeSet([]string{"42.11.10.120", " 27.40.39.110 "})

	tests := []struct {
		name  string
		codes []string
		want  bool
	}{
		{"exact match", []string{"42.11.10.120"}, true},
		{"match among several", []string{"99.99.99", "27.40.39.110"}, true},
		{"whitespace around notice code", []string{"  42.11.10.120  "}, true},
		{"no match", []string{"99.99.99"}, false},
		{"prefix is not a match", []string{"42.11.10"}, false},
		{"longer code is not a match", []string{"42.11.10.120.1"}, false},
		{"no codes at all", nil, false},
		{"empty strings ignored", []string{"", "  "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := set.Matches(tt.codes); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.codes, got, tt.want)
			}
		})
	}
}

func TestCodeSet_Len(t *testing.T) {
	set := parser.NewCodeSet([]string{"42.11.10.120", "42.11.10.120", "27.40.39.110"})
	if set.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after dedup", set.Len())
	}
}

func TestCodeSet_Empty(t *testing.T) {
	set := parser.NewCodeSet(nil)
	if set.Matches([]string{"42.11.10.120"}) {
		t.Error("empty allow-set must reject everything")
	}
}
