// Package cferrors defines the error taxonomy shared by the profile store,
// the format adapters and the watcher.
package cferrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Base error types. Callers branch with errors.Is.
var (
	// ErrNotFound: a backup (or other required file) does not exist.
	// Missing active files are not errors; they read as empty trees.
	ErrNotFound = errors.New("not found")
	// ErrParse: file content does not match its expected format.
	ErrParse = errors.New("parse error")
	// ErrInvalidFormat: file parsed but required managed keys are missing.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrIO: read or write failure.
	ErrIO = errors.New("io error")
)

// NotFoundf wraps ErrNotFound with context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Parsef wraps ErrParse with context.
func Parsef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrParse)...)
}

// InvalidFormatf wraps ErrInvalidFormat with context.
func InvalidFormatf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidFormat)...)
}

// IOf wraps ErrIO with context.
func IOf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrIO)...)
}

// PartialWriteError reports a multi-file write where only some constituent
// files were written. The tool's config is inconsistent on disk and the
// snapshot has not been updated for any file. Writing to temp files and
// renaming only after every file succeeds would close this gap; the
// current design surfaces it instead.
type PartialWriteError struct {
	Tool      string
	Succeeded []string
	Failed    map[string]error
}

func (e *PartialWriteError) Error() string {
	failed := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	return fmt.Sprintf("partial write for %s: wrote %s; failed %s",
		e.Tool, strings.Join(e.Succeeded, ", "), strings.Join(failed, ", "))
}

// Is makes PartialWriteError match ErrIO.
func (e *PartialWriteError) Is(target error) bool {
	return target == ErrIO
}

// FailedFiles returns the names of the files that failed, sorted.
func (e *PartialWriteError) FailedFiles() []string {
	out := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
