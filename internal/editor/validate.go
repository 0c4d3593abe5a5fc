package editor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// BinaryDetector reports whether the file at path holds binary content.
// A nil detector disables the check entirely.
type BinaryDetector func(path string) (bool, error)

// MimetypeBinaryDetector sniffs the file content and treats anything that
// does not descend from text/plain in the MIME hierarchy as binary.
func MimetypeBinaryDetector(path string) (bool, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false, err
	}
	for t := mtype; t != nil; t = t.Parent() {
		if t.Is("text/plain") {
			return false, nil
		}
	}
	return true, nil
}

// validatePath checks that the path and command combination is usable
// before any file content is touched.
func (e *Editor) validatePath(command Command, path string) error {
	if !filepath.IsAbs(path) {
		suggestion := ""
		if e.workspaceRoot != "" {
			candidate := filepath.Join(e.workspaceRoot, path)
			if _, err := os.Stat(candidate); err == nil {
				suggestion = fmt.Sprintf(" Maybe you meant %s?", candidate)
			}
		}
		return NewParameterInvalidError("path", path,
			"The path should be an absolute path, starting with `/`."+suggestion)
	}

	info, err := os.Stat(path)
	exists := err == nil

	if command == CommandCreate {
		if exists {
			return NewParameterInvalidError("path", path,
				fmt.Sprintf("File already exists at: %s. Cannot overwrite files using command `create`.", path))
		}
		return nil
	}

	if !exists {
		return NewParameterInvalidError("path", path,
			fmt.Sprintf("The path %s does not exist. Please provide a valid path.", path))
	}
	if info.IsDir() && command != CommandView {
		return NewParameterInvalidError("path", path,
			fmt.Sprintf("The path %s is a directory and only the `view` command can be used on directories.", path))
	}
	return nil
}

// validateFile rejects files the editor cannot safely load into memory.
// Directories and nonexistent paths pass, they are handled elsewhere.
func (e *Editor) validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}

	if info.Size() > e.maxFileSize {
		return NewFileValidationError(path, fmt.Sprintf(
			"File is too large: %.2f MB (max: %.1f MB)",
			float64(info.Size())/bytesPerMB, float64(e.maxFileSize)/bytesPerMB))
	}

	if e.binaryDetector != nil {
		binary, err := e.binaryDetector(path)
		if err == nil && binary {
			return NewFileValidationError(path,
				"File appears to be binary. The editor only supports text files.")
		}
	}
	return nil
}
