// Package linter integrates an external static-analysis command as an
// advisory collaborator. Lint findings never change the outcome of an edit;
// callers surface them as supplementary output only.
package linter

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// LintError is a single finding reported by the linter.
type LintError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

// Result groups the findings for one linted file.
type Result struct {
	File   string      `json:"file"`
	Errors []LintError `json:"errors"`
}

// Linter reports the findings introduced between two versions of a file.
// Implementations must be safe to skip: callers treat any error as advisory.
type Linter interface {
	// LintFileDiff lints oldPath and newPath and returns only the
	// findings present in the new version but not the old one.
	LintFileDiff(oldPath, newPath string) ([]Result, error)
}

// findingPattern matches the common "file:line:col: message" diagnostic
// format emitted by most linters.
var findingPattern = regexp.MustCompile(`^(?:[^:\s][^:]*:)?(\d+):(\d+)[:\s]\s*(.+)$`)

// CommandLinter runs a configured external command against a file and parses
// line:column diagnostics from its combined output.
type CommandLinter struct {
	command []string
	logger  *zap.Logger
}

// NewCommandLinter creates a linter that invokes command with the target file
// path appended. An empty command yields a linter that reports nothing.
func NewCommandLinter(command []string, logger *zap.Logger) *CommandLinter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandLinter{command: command, logger: logger}
}

// LintFileDiff implements Linter. Findings that already exist in the old
// version are filtered out so the caller only sees what the edit introduced.
func (l *CommandLinter) LintFileDiff(oldPath, newPath string) ([]Result, error) {
	if len(l.command) == 0 {
		return nil, nil
	}

	oldErrors, err := l.lintFile(oldPath)
	if err != nil {
		return nil, err
	}
	newErrors, err := l.lintFile(newPath)
	if err != nil {
		return nil, err
	}

	introduced := diffFindings(oldErrors, newErrors)
	if len(introduced) == 0 {
		return nil, nil
	}
	return []Result{{File: newPath, Errors: introduced}}, nil
}

// lintFile runs the lint command on one file. A non-zero exit status is
// expected when findings exist, so it is not treated as an error.
func (l *CommandLinter) lintFile(path string) ([]LintError, error) {
	args := append(append([]string{}, l.command[1:]...), path)
	cmd := exec.Command(l.command[0], args...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run linter %s: %w", l.command[0], err)
		}
	}

	findings := ParseFindings(buf.String())
	l.logger.Debug("linted file",
		zap.String("path", path),
		zap.Int("findings", len(findings)),
	)
	return findings, nil
}

// ParseFindings extracts line:column diagnostics from linter output.
func ParseFindings(output string) []LintError {
	var findings []LintError
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		m := findingPattern.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		line, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		col, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		findings = append(findings, LintError{Line: line, Column: col, Message: m[3]})
	}
	return findings
}

// diffFindings returns the findings in after that are not in before,
// compared by message only: line numbers shift with the edit, message text
// does not.
func diffFindings(before, after []LintError) []LintError {
	seen := make(map[string]int, len(before))
	for _, e := range before {
		seen[e.Message]++
	}
	var introduced []LintError
	for _, e := range after {
		if seen[e.Message] > 0 {
			seen[e.Message]--
			continue
		}
		introduced = append(introduced, e)
	}
	return introduced
}
