package prune

import (
	"strings"
	"testing"
)

func TestLenCountsUTF16Units(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int
	}{
		{in: "", want: 0},
		{in: "hello", want: 5},
		{in: "привет", want: 6},
		{in: "👍", want: 2},
	}
	for _, tc := range cases {
		if got := Len(tc.in); got != tc.want {
			t.Fatalf("Len(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestTextKeepsShortInput(t *testing.T) {
	t.Parallel()

	if got := Text("short", 10, ""); got != "short" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestTextKeepsHeadAndTail(t *testing.T) {
	t.Parallel()

	s := strings.Repeat("a", 100) + strings.Repeat("z", 100)
	got := Text(s, 60, "[cut]")
	if Len(got) > 60 {
		t.Fatalf("expected at most 60 units, got %d", Len(got))
	}
	if !strings.HasPrefix(got, "aaaa") || !strings.HasSuffix(got, "zzzz") {
		t.Fatalf("expected head and tail, got %q", got)
	}
	if !strings.Contains(got, "\n[cut]\n") {
		t.Fatalf("expected marker, got %q", got)
	}
}

func TestTextNeverSplitsSurrogatePairs(t *testing.T) {
	t.Parallel()

	s := strings.Repeat("👍", 50)
	got := Text(s, 21, "")
	if Len(got) > 21 {
		t.Fatalf("expected at most 21 units, got %d", Len(got))
	}
	if strings.ContainsRune(got, '�') {
		t.Fatalf("broken rune in %q", got)
	}
}

func TestTextTinyBudget(t *testing.T) {
	t.Parallel()

	if got := Text("abcdef", 2, "[…]"); got != "ab" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := Text("abc", 0, ""); got != "" {
		t.Fatalf("unexpected: %q", got)
	}
}
