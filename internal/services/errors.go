// Package services holds the error taxonomy shared by the worker, the
// export saga, and the external service clients.
package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPrecondition marks expected failures with a specific human message,
	// such as an upload that was already exported. Never retried.
	ErrPrecondition = errors.New("precondition failed")
	// ErrExternalTool marks failures of an invoked external binary (ffmpeg,
	// ffprobe).
	ErrExternalTool = errors.New("external tool error")
	// ErrExternalService marks failures of a remote collaborator (tabular
	// store, distribution platform, ntfy).
	ErrExternalService = errors.New("external service error")
	// ErrConfiguration marks unusable configuration detected at use time.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups that produced no row or remote item.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalService
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsPrecondition reports whether the error chain carries the precondition
// marker. Callers use this to present "nothing to do" distinctly from
// "something broke".
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
