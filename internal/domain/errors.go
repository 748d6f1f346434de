package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNotFound            = errors.New("not found")
	ErrEmptyParameters     = errors.New("operation produced no parameters")
	ErrPollBudgetExhausted = errors.New("inference poll budget exhausted")
)

// ValidationError carries per-field problems back to the caller.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UnsafeContentError is raised when the inference service rejects a job on
// content moderation grounds. Unlike other provider failures it is an
// expected, user-visible outcome and keeps the service's message verbatim.
type UnsafeContentError struct {
	Message string
}

func (e *UnsafeContentError) Error() string {
	if e == nil || e.Message == "" {
		return "unsafe content detected"
	}
	return e.Message
}

// InternalError wraps an unexpected failure with the pipeline stage it
// occurred in. Stage and cause go to the log sink only; callers see a
// generic message.
type InternalError struct {
	Stage string
	Err   error
}

func (e *InternalError) Error() string {
	if e == nil {
		return "internal error"
	}
	if e.Err == nil {
		return fmt.Sprintf("internal error at %s", e.Stage)
	}
	return fmt.Sprintf("internal error at %s: %v", e.Stage, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Internal tags err with the pipeline stage it surfaced in.
func Internal(stage string, err error) *InternalError {
	return &InternalError{Stage: stage, Err: err}
}
