package chat

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDeriveTitle(t *testing.T) {
	forty := strings.Repeat("a", 40)
	cases := []struct {
		in, want string
	}{
		{"  hello   world  ", "hello world"},
		{"", DefaultTitle},
		{" \t\n ", DefaultTitle},
		{forty, strings.Repeat("a", 28) + "…"},
		{strings.Repeat("b", 28), strings.Repeat("b", 28)},
		{"line one\nline two", "line one line two"},
	}
	for _, tc := range cases {
		if got := DeriveTitle(tc.in); got != tc.want {
			t.Fatalf("DeriveTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDeriveTitle_Idempotent(t *testing.T) {
	inputs := []string{"  hello   world  ", strings.Repeat("x", 40), "", "короткий текст на русском языке, длинный"}
	for _, in := range inputs {
		once := DeriveTitle(in)
		if twice := DeriveTitle(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestDeriveTitle_CountsRunes(t *testing.T) {
	in := strings.Repeat("é", 30)
	got := DeriveTitle(in)
	if utf8.RuneCountInString(got) != 29 || !strings.HasSuffix(got, "…") {
		t.Fatalf("unexpected title %q", got)
	}
}
