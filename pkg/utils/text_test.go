package utils

import (
	"reflect"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello world"},
		{"  what   are your    hours?  ", "what are your hours"},
		{"...", ""},
		{"already clean", "already clean"},
		{"Tabs\tand\nnewlines", "tabs and newlines"},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBigrams(t *testing.T) {
	got := Bigrams([]string{"pay", "my", "bill"})
	want := []string{"pay my", "my bill"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Bigrams = %v, want %v", got, want)
	}
	if Bigrams([]string{"single"}) != nil {
		t.Error("expected nil for single word")
	}
}

func TestTruncateWords(t *testing.T) {
	words := []string{"a", "b", "c"}
	if got := TruncateWords(words, 2); len(got) != 2 {
		t.Errorf("expected 2 words, got %d", len(got))
	}
	if got := TruncateWords(words, 5); len(got) != 3 {
		t.Errorf("expected 3 words, got %d", len(got))
	}
}
