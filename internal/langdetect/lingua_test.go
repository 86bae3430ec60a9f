package langdetect

import "testing"

func TestDetectISO6391(t *testing.T) {
	t.Parallel()

	if got := DetectISO6391("Rizz is internet slang for charm and the ability to attract a partner"); got != "en" {
		t.Fatalf("unexpected language for english text: %q", got)
	}
	if got := DetectISO6391("La palabra se volvió muy popular entre los jóvenes de todo el país"); got != "es" {
		t.Fatalf("unexpected language for spanish text: %q", got)
	}
}

func TestDetectISO6391_TooShort(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   ", "rizz", "no cap fr"} {
		if got := DetectISO6391(text); got != "" {
			t.Fatalf("expected no language for %q, got %q", text, got)
		}
	}
}
