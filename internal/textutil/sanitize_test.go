package textutil_test

import (
	"testing"

	"aircheck/internal/textutil"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Morning Show", "morning-show"},
		{"umlauts", "Hörspiel über Käuze", "hoerspiel-ueber-kaeuze"},
		{"eszett", "Straßenmusik", "strassenmusik"},
		{"diacritics", "Café à Paris", "cafe-a-paris"},
		{"punctuation", "News & Talk! (live)", "news--talk-live"},
		{"whitespace run", "a \t b", "a-b"},
		{"empty", "   ", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.Slug(tc.input); got != tc.want {
				t.Fatalf("Slug(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
