package features

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1. Mix the batter", "mix the batter"},
		{"2) Bake until golden", "bake until golden"},
		{"• 2 cups flour", "2 cups flour"},
		{"  Lemon Bars  ", "lemon bars"},
		{"3- whisk eggs", "whisk eggs"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtract(t *testing.T) {
	feats := Extract("Notes:")

	if feats["tok:notes"] != 1 {
		t.Errorf("expected unigram tok:notes, got %v", feats)
	}
	if feats["shape:ends_colon"] != 1 {
		t.Error("expected shape:ends_colon")
	}
	if feats["shape:starts_note"] != 1 {
		t.Error("expected shape:starts_note")
	}
	if feats["chr3:not"] != 1 {
		t.Errorf("expected character trigram chr3:not, got %v", feats)
	}
}

func TestExtractBigramsAndDigits(t *testing.T) {
	feats := Extract("2 cups sugar")

	if feats["tok2:2_cups"] != 1 || feats["tok2:cups_sugar"] != 1 {
		t.Errorf("expected word bigrams, got %v", feats)
	}
	if feats["shape:has_digit"] != 1 {
		t.Error("expected shape:has_digit")
	}
	if feats["shape:ends_colon"] != 0 {
		t.Error("did not expect shape:ends_colon")
	}
}

func TestExtractTagLike(t *testing.T) {
	feats := Extract("<div class=\"ad\">")
	if feats["shape:tag_like"] != 1 {
		t.Errorf("expected shape:tag_like, got %v", feats)
	}
}

func TestTotal(t *testing.T) {
	if got := Total(map[string]int{"a": 2, "b": 3}); got != 5 {
		t.Errorf("Total = %d, want 5", got)
	}
	if got := Total(nil); got != 0 {
		t.Errorf("Total(nil) = %d, want 0", got)
	}
}
