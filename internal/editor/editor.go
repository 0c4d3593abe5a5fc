package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kvit-s/kvit-editor/internal/encoding"
	"github.com/kvit-s/kvit-editor/internal/history"
	"github.com/kvit-s/kvit-editor/internal/linter"
)

// Command names one of the editor operations
type Command string

const (
	CommandView       Command = "view"
	CommandCreate     Command = "create"
	CommandStrReplace Command = "str_replace"
	CommandInsert     Command = "insert"
	CommandUndoEdit   Command = "undo_edit"
)

var availableCommands = []Command{
	CommandView, CommandCreate, CommandStrReplace, CommandInsert, CommandUndoEdit,
}

const (
	// DefaultMaxFileSize bounds the files the editor will load into memory
	DefaultMaxFileSize = 10 << 20

	// snippetContextWindow is how many lines around an edit are echoed back
	snippetContextWindow = 4

	bytesPerMB = float64(1 << 20)
)

// Arguments carries the parameters of a single command invocation.
// Pointer fields distinguish "absent" from a legitimate empty value.
type Arguments struct {
	Command       Command `json:"command"`
	Path          string  `json:"path"`
	FileText      *string `json:"file_text,omitempty"`
	ViewRange     []int   `json:"view_range,omitempty"`
	OldStr        *string `json:"old_str,omitempty"`
	NewStr        *string `json:"new_str,omitempty"`
	InsertLine    *int    `json:"insert_line,omitempty"`
	EnableLinting bool    `json:"enable_linting,omitempty"`
}

// Options configures an Editor
type Options struct {
	// WorkspaceRoot, when set, must be absolute. It is only used to
	// suggest corrections for relative paths.
	WorkspaceRoot string

	// MaxFileSize in bytes, zero means DefaultMaxFileSize
	MaxFileSize int64

	// History tracks per-file undo snapshots, required
	History *history.Manager

	// Encodings resolves file encodings, nil gets a default manager
	Encodings *encoding.Manager

	// Linter checks edits when linting is enabled, nil disables linting
	Linter linter.Linter

	// BinaryDetector overrides binary-content detection. Leave nil for
	// the mimetype-based default, use NoBinaryCheck to disable.
	BinaryDetector BinaryDetector

	Logger *zap.Logger
}

// NoBinaryCheck is a BinaryDetector that accepts every file
func NoBinaryCheck(string) (bool, error) { return false, nil }

// Editor executes view, create, str_replace, insert and undo_edit
// commands against the local filesystem.
type Editor struct {
	workspaceRoot  string
	maxFileSize    int64
	history        *history.Manager
	encodings      *encoding.Manager
	linter         linter.Linter
	binaryDetector BinaryDetector
	logger         *zap.Logger
}

// New creates an Editor from the given options
func New(opts Options) (*Editor, error) {
	if opts.History == nil {
		return nil, fmt.Errorf("history manager is required")
	}
	if opts.WorkspaceRoot != "" && !filepath.IsAbs(opts.WorkspaceRoot) {
		return nil, fmt.Errorf("workspace root must be an absolute path, got %q", opts.WorkspaceRoot)
	}
	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	encodings := opts.Encodings
	if encodings == nil {
		encodings = encoding.NewManager(0, opts.Logger)
	}
	detector := opts.BinaryDetector
	if detector == nil {
		detector = MimetypeBinaryDetector
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{
		workspaceRoot:  opts.WorkspaceRoot,
		maxFileSize:    maxFileSize,
		history:        opts.History,
		encodings:      encodings,
		linter:         opts.Linter,
		binaryDetector: detector,
		logger:         logger,
	}, nil
}

// Execute runs one command and folds any failure into the result, so the
// caller always gets a renderable Result back.
func (e *Editor) Execute(args Arguments) Result {
	res, err := e.run(args)
	if err != nil {
		e.logger.Debug("command failed",
			zap.String("command", string(args.Command)),
			zap.String("path", args.Path),
			zap.Error(err))
		return Result{Error: err.Error()}
	}
	return res
}

func (e *Editor) run(args Arguments) (Result, error) {
	known := false
	for _, c := range availableCommands {
		if args.Command == c {
			known = true
			break
		}
	}
	if !known {
		return Result{}, NewToolError(
			"Unrecognized command %s. The allowed commands for the editor are: %s",
			args.Command, joinCommands(availableCommands))
	}

	if err := e.validatePath(args.Command, args.Path); err != nil {
		return Result{}, err
	}

	switch args.Command {
	case CommandView:
		return e.view(args.Path, args.ViewRange)
	case CommandCreate:
		if args.FileText == nil {
			return Result{}, NewParameterMissingError(CommandCreate, "file_text")
		}
		return e.create(args.Path, *args.FileText)
	case CommandStrReplace:
		if args.OldStr == nil {
			return Result{}, NewParameterMissingError(CommandStrReplace, "old_str")
		}
		newStr := ""
		if args.NewStr != nil {
			newStr = *args.NewStr
		}
		if args.NewStr != nil && newStr == *args.OldStr {
			return Result{}, NewParameterInvalidError("new_str", newStr,
				"No replacement was performed. `new_str` and `old_str` must be different.")
		}
		return e.strReplace(args.Path, *args.OldStr, newStr, args.EnableLinting)
	case CommandInsert:
		if args.InsertLine == nil {
			return Result{}, NewParameterMissingError(CommandInsert, "insert_line")
		}
		if args.NewStr == nil {
			return Result{}, NewParameterMissingError(CommandInsert, "new_str")
		}
		return e.insert(args.Path, *args.InsertLine, *args.NewStr, args.EnableLinting)
	default:
		return e.undoEdit(args.Path)
	}
}

func (e *Editor) view(path string, viewRange []int) (Result, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if viewRange != nil {
			return Result{}, NewParameterInvalidError("view_range", viewRange,
				"The `view_range` parameter is not allowed when `path` points to a directory.")
		}
		return e.viewDirectory(path)
	}

	if err := e.validateFile(path); err != nil {
		return Result{}, err
	}
	content, err := e.readFile(path, e.encodings.GetEncoding(path))
	if err != nil {
		return Result{}, err
	}

	if viewRange == nil {
		output := e.makeOutput(maybeTruncate(content, MaxResponseLen, fileTruncatedNotice), path, 1)
		return Result{Output: output, Path: path, PrevExist: true}, nil
	}

	if len(viewRange) != 2 {
		return Result{}, NewParameterInvalidError("view_range", viewRange,
			"It should be a list of two integers.")
	}
	lines := splitLines(content)
	numLines := len(lines)
	start, end := viewRange[0], viewRange[1]
	if start < 1 || start > numLines {
		return Result{}, NewParameterInvalidError("view_range", viewRange, fmt.Sprintf(
			"Its first element `%d` should be within the range of lines of the file: [1, %d].",
			start, numLines))
	}
	if end > numLines {
		return Result{}, NewParameterInvalidError("view_range", viewRange, fmt.Sprintf(
			"Its second element `%d` should be smaller than the number of lines in the file: `%d`.",
			end, numLines))
	}
	if end != -1 && end < start {
		return Result{}, NewParameterInvalidError("view_range", viewRange, fmt.Sprintf(
			"Its second element `%d` should be greater than or equal to the first element `%d`.",
			end, start))
	}
	if end == -1 {
		end = numLines
	}

	output := e.makeOutput(strings.Join(lines[start-1:end], "\n"), path, start)
	return Result{Output: output, Path: path, PrevExist: true}, nil
}

// viewDirectory lists entries up to two levels deep, hidden items counted
// but not shown.
func (e *Editor) viewDirectory(path string) (Result, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return Result{}, NewToolError("Error reading directory %s: %v", path, err)
	}

	var items []string
	hidden := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			hidden++
			continue
		}
		full := filepath.Join(path, entry.Name())
		if !entry.IsDir() {
			items = append(items, full)
			continue
		}
		items = append(items, full+"/")
		children, err := os.ReadDir(full)
		if err != nil {
			continue
		}
		for _, child := range children {
			if strings.HasPrefix(child.Name(), ".") {
				continue
			}
			childPath := filepath.Join(full, child.Name())
			if child.IsDir() {
				childPath += "/"
			}
			items = append(items, childPath)
		}
	}
	sort.Strings(items)

	listing := fmt.Sprintf(
		"Here's the files and directories up to 2 levels deep in %s, excluding hidden items:\n%s",
		path, strings.Join(items, "\n"))
	output := maybeTruncate(listing, MaxResponseLen, directoryTruncatedNotice)
	if hidden > 0 {
		output += fmt.Sprintf(
			"\n\n%d hidden files/directories in this directory are excluded. You can use 'ls -la %s' to see them.",
			hidden, path)
	}
	return Result{Output: output, Path: path, PrevExist: true}, nil
}

func (e *Editor) create(path, fileText string) (Result, error) {
	if err := e.writeFile(path, fileText, encoding.DefaultEncoding); err != nil {
		return Result{}, err
	}
	if err := e.history.AddHistory(path, fileText); err != nil {
		return Result{}, err
	}
	return Result{
		Output:     fmt.Sprintf("File created successfully at: %s", path),
		Path:       path,
		PrevExist:  false,
		NewContent: fileText,
	}, nil
}

func (e *Editor) strReplace(path, oldStr, newStr string, enableLinting bool) (Result, error) {
	if err := e.validateFile(path); err != nil {
		return Result{}, err
	}
	enc := e.encodings.GetEncoding(path)
	content, err := e.readFile(path, enc)
	if err != nil {
		return Result{}, err
	}

	occurrences := strings.Count(content, oldStr)
	if occurrences == 0 {
		return Result{}, NewToolError(
			"No replacement was performed, old_str `%s` did not appear verbatim in %s.",
			oldStr, path)
	}
	if occurrences > 1 {
		return Result{}, NewToolError(
			"No replacement was performed. Multiple occurrences of old_str `%s` in lines %s. Please ensure it is unique.",
			oldStr, formatLineNumbers(occurrenceLines(content, oldStr)))
	}

	idx := strings.Index(content, oldStr)
	replacementLine := strings.Count(content[:idx], "\n") + 1
	newContent := content[:idx] + newStr + content[idx+len(oldStr):]

	if err := e.writeFile(path, newContent, enc); err != nil {
		return Result{}, err
	}
	if err := e.history.AddHistory(path, content); err != nil {
		return Result{}, err
	}

	startLine := max(0, replacementLine-snippetContextWindow)
	endLine := replacementLine + snippetContextWindow + strings.Count(newStr, "\n")
	snippet := lineSlice(newContent, startLine, endLine)

	var b strings.Builder
	fmt.Fprintf(&b, "The file %s has been edited. ", path)
	b.WriteString(e.makeOutput(snippet, fmt.Sprintf("a snippet of %s", path), startLine+1))
	if enableLinting && e.linter != nil {
		b.WriteString("\n")
		b.WriteString(e.runLinting(content, newContent, path))
		b.WriteString("\n")
	}
	b.WriteString("Review the changes and make sure they are as expected. Edit the file again if necessary.")

	return Result{
		Output:     b.String(),
		Path:       path,
		PrevExist:  true,
		OldContent: content,
		NewContent: newContent,
	}, nil
}

func (e *Editor) insert(path string, insertLine int, newStr string, enableLinting bool) (Result, error) {
	if err := e.validateFile(path); err != nil {
		return Result{}, err
	}
	enc := e.encodings.GetEncoding(path)
	content, err := e.readFile(path, enc)
	if err != nil {
		return Result{}, err
	}

	lines := splitAfterLines(content)
	numLines := len(lines)
	if insertLine < 0 || insertLine > numLines {
		return Result{}, NewParameterInvalidError("insert_line", insertLine, fmt.Sprintf(
			"It should be within the range of lines of the file: [0, %d]", numLines))
	}

	newLines := strings.Split(newStr, "\n")
	var b strings.Builder
	for _, line := range lines[:insertLine] {
		b.WriteString(line)
	}
	for _, line := range newLines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	for _, line := range lines[insertLine:] {
		b.WriteString(line)
	}
	newContent := b.String()

	if err := e.writeFile(path, newContent, enc); err != nil {
		return Result{}, err
	}
	if err := e.history.AddHistory(path, content); err != nil {
		return Result{}, err
	}

	startLine := max(0, insertLine-snippetContextWindow)
	endLine := min(numLines+len(newLines), insertLine+snippetContextWindow+len(newLines))
	snippet := lineSlice(newContent, startLine, endLine)

	var out strings.Builder
	fmt.Fprintf(&out, "The file %s has been edited. ", path)
	out.WriteString(e.makeOutput(snippet, "a snippet of the edited file", max(1, insertLine-snippetContextWindow+1)))
	if enableLinting && e.linter != nil {
		out.WriteString("\n")
		out.WriteString(e.runLinting(content, newContent, path))
		out.WriteString("\n")
	}
	out.WriteString("Review the changes and make sure they are as expected (correct indentation, no duplicate lines, etc). Edit the file again if necessary.")

	return Result{
		Output:     out.String(),
		Path:       path,
		PrevExist:  true,
		OldContent: content,
		NewContent: newContent,
	}, nil
}

func (e *Editor) undoEdit(path string) (Result, error) {
	enc := e.encodings.GetEncoding(path)
	current, err := e.readFile(path, enc)
	if err != nil {
		return Result{}, err
	}

	old, ok, err := e.history.PopLastHistory(path)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{
			Output:    fmt.Sprintf("No history found for %s. Cannot undo.", path),
			Path:      path,
			PrevExist: true,
		}, nil
	}

	if err := e.writeFile(path, old, enc); err != nil {
		return Result{}, err
	}
	diff, err := generateUnifiedDiff(current, old, path)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Output:     fmt.Sprintf("Changes to %s undone successfully.\n\nDiff:\n%s", path, diff),
		Path:       path,
		PrevExist:  true,
		OldContent: current,
		NewContent: old,
	}, nil
}

// runLinting writes the before and after content to a scratch directory
// and reports only the findings the edit introduced.
func (e *Editor) runLinting(oldContent, newContent, path string) string {
	dir, err := os.MkdirTemp("", "kvit-editor-lint-")
	if err != nil {
		return fmt.Sprintf("Linting error: %v", err)
	}
	defer os.RemoveAll(dir)

	ext := filepath.Ext(path)
	oldPath := filepath.Join(dir, "original"+ext)
	newPath := filepath.Join(dir, "updated"+ext)
	if err := os.WriteFile(oldPath, []byte(oldContent), 0o644); err != nil {
		return fmt.Sprintf("Linting error: %v", err)
	}
	if err := os.WriteFile(newPath, []byte(newContent), 0o644); err != nil {
		return fmt.Sprintf("Linting error: %v", err)
	}

	results, err := e.linter.LintFileDiff(oldPath, newPath)
	if err != nil {
		return fmt.Sprintf("Linting error: %v", err)
	}
	if len(results) == 0 {
		return "Linting: No issues found in the changes."
	}

	var b strings.Builder
	b.WriteString("Linting results:")
	for _, res := range results {
		for _, le := range res.Errors {
			fmt.Fprintf(&b, "\nLine %d, Col %d: %s", le.Line, le.Column, le.Message)
		}
	}
	return b.String()
}

func (e *Editor) readFile(path, enc string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", NewToolError("Error reading file %s: %v", path, err)
	}
	content, err := encoding.DecodeBytes(data, enc)
	if err != nil {
		return "", NewToolError("Error reading file %s: %v", path, err)
	}
	return content, nil
}

func (e *Editor) writeFile(path, content, enc string) error {
	data, err := encoding.EncodeString(content, enc)
	if err != nil {
		return NewToolError("Ran into %v while trying to write to %s", err, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return NewToolError("Ran into %v while trying to write to %s", err, path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return NewToolError("Ran into %v while trying to write to %s", err, path)
	}
	return nil
}

// makeOutput numbers each line and labels the content with its source
func (e *Editor) makeOutput(content, desc string, startLine int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Contents of %s:\n\n", desc)
	for i, line := range splitLines(content) {
		fmt.Fprintf(&b, "%4d | %s\n", startLine+i, line)
	}
	return b.String()
}

// splitLines breaks content into lines without terminators, matching how
// the numbered view counts lines. A trailing newline does not produce an
// empty final line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// splitAfterLines breaks content into lines keeping terminators
func splitAfterLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// lineSlice returns lines [start, end) of content as 0-based indices,
// clamped to the content, joined without a trailing newline.
func lineSlice(content string, start, end int) string {
	lines := splitLines(content)
	if start >= len(lines) {
		return ""
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}

func occurrenceLines(content, needle string) []int {
	var out []int
	offset := 0
	for offset <= len(content) {
		idx := strings.Index(content[offset:], needle)
		if idx < 0 {
			return out
		}
		abs := offset + idx
		line := strings.Count(content[:abs], "\n") + 1
		if len(out) == 0 || out[len(out)-1] != line {
			out = append(out, line)
		}
		// An empty needle matches at every position; step one byte so
		// the scan always advances.
		offset = abs + max(1, len(needle))
	}
	return out
}

func formatLineNumbers(lines []int) string {
	parts := make([]string, len(lines))
	for i, n := range lines {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func joinCommands(cmds []Command) string {
	parts := make([]string, len(cmds))
	for i, c := range cmds {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
