// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package pipeline

import (
	"errors"

	"github.com/paper-reader/internal/ai"
	"github.com/paper-reader/internal/database"
	"github.com/paper-reader/internal/pdf"
	"github.com/paper-reader/internal/summary"
)

// ErrorKind classifies why a run failed.
type ErrorKind string

const (
	KindNone               ErrorKind = "none"
	KindExtraction         ErrorKind = "extraction"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindInvalidModelOutput ErrorKind = "invalid_model_output"
	KindIncompleteSummary  ErrorKind = "incomplete_summary"
	KindNotFound           ErrorKind = "not_found"
	KindInternal           ErrorKind = "internal"
)

// Classify maps an error from any stage to its kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, pdf.ErrExtraction):
		return KindExtraction
	case errors.Is(err, ai.ErrServiceUnavailable):
		return KindServiceUnavailable
	case errors.Is(err, summary.ErrInvalidModelOutput):
		return KindInvalidModelOutput
	case errors.Is(err, summary.ErrIncompleteSummary):
		return KindIncompleteSummary
	case errors.Is(err, database.ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// Result is the outcome of one run: a complete summary with its new version,
// or an error with its kind.
type Result struct {
	PaperID int64
	Summary summary.Summary
	Version int
	Err     error
	Kind    ErrorKind
}

// OK reports whether the run completed.
func (r Result) OK() bool {
	return r.Err == nil
}

func ok(paperID int64, s summary.Summary, version int) Result {
	return Result{PaperID: paperID, Summary: s, Version: version, Kind: KindNone}
}

func failed(paperID int64, err error) Result {
	return Result{PaperID: paperID, Err: err, Kind: Classify(err)}
}

// Transition returns the status a paper leaves processing with.
func Transition(r Result) database.Status {
	if r.OK() {
		return database.StatusCompleted
	}
	return database.StatusFailed
}
