package search

import (
	"testing"
)

func TestSnippet(t *testing.T) {
	if Snippet("short", 10) != "short" {
		t.Error("short string should be unchanged")
	}
	if got := Snippet("long text here", 6); got != "long..." {
		t.Errorf("got %q", got)
	}
	if got := Snippet("abcdefgh", 4); got != "abcd..." {
		t.Errorf("no space: got %q", got)
	}
	if Snippet("x", 0) != "x" {
		t.Error("maxRunes 0 should return as-is")
	}
	if got := Snippet("日本語のテキスト", 3); got != "日本語..." {
		t.Errorf("runes: got %q", got)
	}
}
