package segment

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitParagraphAndLineModes(t *testing.T) {
	text := "Line one\nLine two\n\nLine three"

	tests := []struct {
		mode Mode
		want []string
	}{
		{mode: Paragraph, want: []string{"Line one\nLine two", "Line three"}},
		{mode: Line, want: []string{"Line one", "Line two", "Line three"}},
	}

	for _, tc := range tests {
		t.Run(tc.mode.String(), func(t *testing.T) {
			got := Split(text, tc.mode).Segments()
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Split(%q, %s) = %q, want %q", text, tc.mode, got, tc.want)
			}
		})
	}
}

func TestSplitRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"single",
		"  indented line  ",
		"Line one\nLine two\n\nLine three",
		"\n\nleading blank lines\n",
		"trailing\n\n\n",
		"a\r\n\r\nb\r\n",
		"para one\n   \t\n\n  para two wraps\n  onto two lines\n",
		"   \n\t\n",
		"tabs\tinside\n\n\n\nfour breaks",
	}

	for _, in := range inputs {
		for _, mode := range []Mode{Line, Paragraph} {
			layout := Split(in, mode)
			if got := layout.String(); got != in {
				t.Fatalf("%s round trip of %q = %q", mode, in, got)
			}
			if got := layout.Join(func(_ int, s string) string { return s }); got != in {
				t.Fatalf("%s identity join of %q = %q", mode, in, got)
			}
			for _, seg := range layout.Segments() {
				if strings.TrimSpace(seg) != seg || seg == "" {
					t.Fatalf("%s segment %q of %q is not trimmed", mode, seg, in)
				}
			}
		}
	}
}

func TestJoinReplacesOnlySegments(t *testing.T) {
	layout := Split("  Hello\n\n  World  \n", Line)

	got := layout.Join(func(i int, s string) string {
		return strings.ToUpper(s) + string(rune('0'+i))
	})
	want := "  HELLO0\n\n  WORLD1  \n"
	if got != want {
		t.Fatalf("Join = %q, want %q", got, want)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"":          Line,
		"line":      Line,
		"Paragraph": Paragraph,
	} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMode("sentence"); err == nil {
		t.Fatal("ParseMode(sentence) should fail")
	}
}
