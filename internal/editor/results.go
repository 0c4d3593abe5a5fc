package editor

import "unicode/utf8"

// MaxResponseLen is the character bound applied to whole-file views and
// directory listings before they are returned to the caller.
const MaxResponseLen = 16000

const (
	fileTruncatedNotice = "<response clipped><NOTE>To save on context only part of this file has been shown to you. You should retry this tool after you have searched inside the file with `grep -n` in order to find the line numbers of what you are looking for.</NOTE>"

	directoryTruncatedNotice = "<response clipped><NOTE>To save on context only part of this directory has been shown to you. You should use `ls -la` instead to view large directories incrementally.</NOTE>"
)

// Result is the outcome of a single editor command. Exactly one of Output
// and Error is populated. The content fields carry the before/after state
// for mutating commands so callers can build their own diffs or revert.
type Result struct {
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	Path       string `json:"path,omitempty"`
	PrevExist  bool   `json:"prev_exist"`
	OldContent string `json:"old_content,omitempty"`
	NewContent string `json:"new_content,omitempty"`
}

// Format renders the result for display. Errors are prefixed so the
// consumer can tell a failed command apart from file content that merely
// mentions errors.
func (r Result) Format() string {
	if r.Error != "" {
		return "ERROR:\n" + r.Error
	}
	return r.Output
}

// maybeTruncate clips content at the given character bound and appends the
// notice. Content at or under the bound passes through untouched. The cut
// backs up to a rune boundary so truncation never emits invalid UTF-8.
func maybeTruncate(content string, truncateAfter int, notice string) string {
	if truncateAfter <= 0 || len(content) <= truncateAfter {
		return content
	}
	cut := truncateAfter
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + notice
}
