package common

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds as they appear in side logs.
const (
	KindInvalidInput = "invalid_input"
	KindBatchFetch   = "batch_fetch_error"
	KindEmptyResult  = "empty_result"
	KindParseWarning = "parse_warning"
)

var (
	ErrNoValidIdentifiers = errors.New("no valid identifiers")
	ErrEmptyResult        = errors.New("empty result")
	ErrUnknownStage       = errors.New("unknown stage")
)

// ValidationError is returned when an identifier list contains nothing usable.
// It is fatal for the stage that reads the list.
type ValidationError struct {
	Kind    string
	Source  string
	Invalid int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: no valid %s identifiers in %s (%d invalid)", KindInvalidInput, e.Kind, e.Source, e.Invalid)
}

func (e *ValidationError) Unwrap() error {
	return ErrNoValidIdentifiers
}

// FetchError describes one failed batch request. It is recorded in the
// stage's error log and does not stop the stage.
type FetchError struct {
	Endpoint   string
	Batch      []string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s [%s]: HTTP %d", KindBatchFetch, e.Endpoint, e.Payload(), e.StatusCode)
	}
	return fmt.Sprintf("%s: %s [%s]: %v", KindBatchFetch, e.Endpoint, e.Payload(), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Payload is the '+' joined batch as it was sent.
func (e *FetchError) Payload() string {
	return strings.Join(e.Batch, "+")
}

// LogLine renders the error as one tab separated error log entry.
func (e *FetchError) LogLine() string {
	reason := ""
	if e.Err != nil {
		reason = oneLine(e.Err.Error())
	}
	return strings.Join([]string{
		KindBatchFetch,
		e.Endpoint,
		e.Payload(),
		fmt.Sprintf("%d", e.StatusCode),
		reason,
	}, "\t")
}

// EmptyResultError is raised by a stage whose required input exists but holds
// no data, typically because every upstream batch failed.
type EmptyResultError struct {
	Path   string
	Reason string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%s: %s: %s", KindEmptyResult, e.Path, e.Reason)
}

func (e *EmptyResultError) Unwrap() error {
	return ErrEmptyResult
}

// ParseWarning marks a record that was skipped for one output table.
type ParseWarning struct {
	RecordID string
	Table    string
	Line     int
	Message  string
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("%s: record %q line %d (%s): %s", KindParseWarning, w.RecordID, w.Line, w.Table, w.Message)
}

// LogLine renders the warning as one tab separated parse log entry.
func (w ParseWarning) LogLine() string {
	return strings.Join([]string{
		KindParseWarning,
		w.RecordID,
		w.Table,
		fmt.Sprintf("%d", w.Line),
		oneLine(w.Message),
	}, "\t")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
