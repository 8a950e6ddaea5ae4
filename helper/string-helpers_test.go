package helper

import (
	"testing"
	"time"
)

func TestCsvToStringSliceTrimSpaces(t *testing.T) {
	got := CsvToStringSliceTrimSpaces(" id , id2,,")
	if len(got) != 2 || got[0] != "id" || got[1] != "id2" {
		t.Fatalf("expected [id id2]; got %v", got)
	}
	if got = CsvToStringSliceTrimSpaces(""); len(got) != 0 {
		t.Fatalf("expected empty slice; got %v", got)
	}
}

func TestGenerateStringOfColsEqualsCols(t *testing.T) {
	cases := []struct {
		cols     []string
		srcAlias string
		expected string
	}{
		{[]string{"id"}, "", "id = src.id"},
		{[]string{"id", "id2"}, "", "id = src.id AND id2 = src.id2"},
		{[]string{"id", "id2"}, "tgt", "tgt.id = src.id AND tgt.id2 = src.id2"},
	}
	for _, c := range cases {
		got := GenerateStringOfColsEqualsCols(c.cols, c.srcAlias, "src", " AND ")
		if got != c.expected {
			t.Fatalf("expected %q; got %q", c.expected, got)
		}
	}
}

func TestGetStringFromInterface(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		input    interface{}
		expected string
	}{
		{int64(42), "42"},
		{1.5, "1.5"},
		{"abc", "abc"},
		{true, "true"},
		{nil, ""},
		{ts, "20240102T030405+0000"},
	}
	for _, c := range cases {
		got, err := GetStringFromInterface(c.input)
		if err != nil {
			t.Fatal(err)
		}
		if got != c.expected {
			t.Fatalf("expected %q; got %q", c.expected, got)
		}
	}
	if _, err := GetStringFromInterface(struct{}{}); err == nil {
		t.Fatal("expected error for unhandled type")
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := QuoteIdentifier("t1"); got != `"t1"` {
		t.Fatalf("expected %q; got %q", `"t1"`, got)
	}
	if got := QuoteIdentifier(`"My.Table"`); got != `"My.Table"` {
		t.Fatalf("expected quoted identifier to be unchanged; got %q", got)
	}
	if got := QuoteIdentifier(`a"b`); got != `"a""b"` {
		t.Fatalf("expected embedded quote to be doubled; got %q", got)
	}
}

func TestGetTrueFalseStringAsBool(t *testing.T) {
	if !GetTrueFalseStringAsBool(" TRUE ") {
		t.Fatal("expected TRUE to be true")
	}
	if GetTrueFalseStringAsBool("FALSE") || GetTrueFalseStringAsBool("untrue") {
		t.Fatal("expected FALSE/untrue to be false")
	}
}

func TestEscapeStringLiteral(t *testing.T) {
	cases := map[string]string{
		`\N`:     `\\N`,
		"it's":   "it''s",
		`a\'b`:   `a\\''b`,
		"":       "",
		"plain,": "plain,",
	}
	for in, expected := range cases {
		if got := EscapeStringLiteral(in); got != expected {
			t.Fatalf("%q: expected %q; got %q", in, expected, got)
		}
	}
}
