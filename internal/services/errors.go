package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInput marks malformed or empty input that cannot be retried.
	ErrInput = errors.New("input error")
	// ErrPolicy marks an anonymization guarantee the pipeline could not
	// satisfy. Always fatal for the run; no artifact may be emitted.
	ErrPolicy = errors.New("policy violation")
	// ErrTransient marks failures worth retrying with backoff, such as an
	// unreachable orchestrator or a failed status poll.
	ErrTransient = errors.New("transient failure")
	// ErrRejected marks an explicit remote rejection; terminal, not retried.
	ErrRejected = errors.New("remote rejected")
	// ErrConflict marks a duplicate trigger for an in-flight item. Callers
	// short-circuit to the existing run instead of surfacing an error.
	ErrConflict = errors.New("concurrency conflict")
	// ErrConfiguration marks invalid or missing configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether an error is worth retrying by the caller.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Fatal reports whether an error must abort the run without emitting any
// artifact.
func Fatal(err error) bool {
	return errors.Is(err, ErrInput) || errors.Is(err, ErrPolicy) ||
		errors.Is(err, ErrRejected) || errors.Is(err, ErrConfiguration)
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
