package report

import (
	"testing"

	"isle/internal/token"
)

func TestPosition(t *testing.T) {
	src := "ab\ncd\n\nx"
	tests := []struct {
		offset    int
		line, col int
	}{
		{0, 1, 1},
		{2, 1, 3},
		{3, 2, 1},
		{4, 2, 2},
		{7, 4, 1},
		{100, 4, 2},
	}
	for _, tt := range tests {
		line, col := Position(src, tt.offset)
		if line != tt.line || col != tt.col {
			t.Errorf("offset %d: expected %d:%d, got %d:%d", tt.offset, tt.line, tt.col, line, col)
		}
	}
}

func TestRender(t *testing.T) {
	src := "let x = 1;\n    x = 2 in x"
	r := Errorf("duplicate binding '%s'", "x").
		Primary(token.Span{Start: 15, End: 16}, "bound again here").
		Secondary(token.Span{Start: 4, End: 5}, "first bound here").
		Tip("rename one of them")

	expected := "main.isle:2:5: error: duplicate binding 'x'\n" +
		"  2:5: bound again here\n" +
		"  1:5: first bound here\n" +
		"  tip: rename one of them"
	if got := Render("main.isle", src, r); got != expected {
		t.Fatalf("expected:\n%s\ngot:\n%s", expected, got)
	}
}

func TestSortAndMax(t *testing.T) {
	if Max(nil) != Severity(-1) {
		t.Fatalf("expected -1 for no reports")
	}
	late := Warning("late").Primary(token.Span{Start: 9, End: 10}, "")
	early := Errorf("early").Secondary(token.Span{Start: 1, End: 2}, "")
	tie := New(Note, "tie").Primary(token.Span{Start: 9, End: 9}, "")
	reports := []*Report{late, early, tie}
	Sort(reports)
	if reports[0] != early || reports[1] != late || reports[2] != tie {
		t.Fatalf("unexpected order %v", reports)
	}
	if got := Max(reports); got != Error {
		t.Fatalf("expected error, got %s", got)
	}
}
