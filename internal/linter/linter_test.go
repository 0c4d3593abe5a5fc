package linter

import (
	"testing"

	"go.uber.org/zap"
)

func TestParseFindings(t *testing.T) {
	output := `main.py:3:10: F821 undefined name 'foo'
main.py:7:1: E302 expected 2 blank lines, got 1
some unrelated noise line
12:5: bare diagnostic without filename
`
	findings := ParseFindings(output)
	if len(findings) != 3 {
		t.Fatalf("ParseFindings returned %d findings, want 3", len(findings))
	}
	if findings[0].Line != 3 || findings[0].Column != 10 {
		t.Errorf("findings[0] = %+v, want line 3 col 10", findings[0])
	}
	if findings[2].Line != 12 || findings[2].Column != 5 {
		t.Errorf("findings[2] = %+v, want line 12 col 5", findings[2])
	}
	if findings[0].Message != "F821 undefined name 'foo'" {
		t.Errorf("findings[0].Message = %q", findings[0].Message)
	}
}

func TestParseFindingsEmptyOutput(t *testing.T) {
	if findings := ParseFindings(""); len(findings) != 0 {
		t.Errorf("ParseFindings(\"\") = %v, want none", findings)
	}
}

func TestDiffFindingsOnlyIntroduced(t *testing.T) {
	old := []LintError{
		{Line: 3, Column: 1, Message: "E302 expected 2 blank lines"},
	}
	new := []LintError{
		{Line: 5, Column: 1, Message: "E302 expected 2 blank lines"}, // pre-existing, shifted
		{Line: 9, Column: 4, Message: "F821 undefined name 'bar'"},   // introduced
	}

	introduced := diffFindings(old, new)
	if len(introduced) != 1 {
		t.Fatalf("diffFindings returned %d, want 1", len(introduced))
	}
	if introduced[0].Message != "F821 undefined name 'bar'" {
		t.Errorf("introduced = %+v", introduced[0])
	}
}

func TestEmptyCommandReportsNothing(t *testing.T) {
	l := NewCommandLinter(nil, zap.NewNop())
	results, err := l.LintFileDiff("/old", "/new")
	if err != nil {
		t.Fatalf("LintFileDiff: %v", err)
	}
	if results != nil {
		t.Errorf("LintFileDiff = %v, want nil", results)
	}
}
