package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a local mirror row does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError is malformed caller input. It never reaches the remote.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// StagingError is a failure to obtain a staged upload target.
type StagingError struct {
	File string
	Err  error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("staging %s: %v", e.File, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// TransferError is a rejected or failed byte transfer. Body is the raw response of the upload target.
type TransferError struct {
	File       string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransferError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transfer %s rejected (status %d): %s", e.File, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("transfer %s: %v", e.File, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// AttachError is a failure to register a transferred resource as product media.
type AttachError struct {
	File string
	Err  error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("attach %s: %v", e.File, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// ReconciliationError means the remote mutation succeeded but the local mirror could not be written.
// Remote state is ahead of local state until the next sync.
type ReconciliationError struct {
	ProductID int64
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("local mirror of product %d not updated: %v", e.ProductID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// ItemOutcome is the result of one item of a batch.
type ItemOutcome struct {
	Index     int    `json:"index"`
	Title     string `json:"title,omitempty"`
	ProductID int64  `json:"productId,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
}

const (
	ItemSucceeded = "succeeded"
	ItemFailed    = "failed"
	ItemSkipped   = "skipped"
)

// PartialFailure reports a batch in which some items failed while others succeeded.
type PartialFailure struct {
	Items []ItemOutcome
}

func (e *PartialFailure) Error() string {
	failed := 0
	for _, it := range e.Items {
		if it.Status != ItemSucceeded {
			failed++
		}
	}
	return fmt.Sprintf("%d of %d items not imported", failed, len(e.Items))
}

func notFoundErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
