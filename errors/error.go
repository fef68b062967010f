package errors

import (
	stderrors "errors"
	"fmt"
)

// ConfigurationError occurs when the parameters of a generation job are invalid. It is
// always raised before any stage runs.
type ConfigurationError struct{ Message string }

// Error returns a textual representation of this ConfigurationError
func (e ConfigurationError) Error() string {
	return fmt.Sprintf("Invalid configuration: %s", e.Message)
}

// StageError occurs when a stage of the pipeline fails
type StageError struct {
	Stage string
	Err   error
}

// Error returns a textual representation of this StageError
func (e StageError) Error() string {
	return fmt.Sprintf("Stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the cause of this StageError
func (e StageError) Unwrap() error {
	return e.Err
}

// StatisticsMergeError occurs when two Statistics for the same country cannot be merged
type StatisticsMergeError struct {
	Country string
	Err     error
}

// Error returns a textual representation of this StatisticsMergeError
func (e StatisticsMergeError) Error() string {
	return fmt.Sprintf("Unable to merge statistics for country %s: %v", e.Country, e.Err)
}

// Unwrap returns the cause of this StatisticsMergeError
func (e StatisticsMergeError) Unwrap() error {
	return e.Err
}

// MissingDatasetError occurs when a persisted dataset does not exist at an expected location
type MissingDatasetError struct{ Path string }

// Error returns a textual representation of this MissingDatasetError
func (e MissingDatasetError) Error() string {
	return fmt.Sprintf("Dataset %s does not exist", e.Path)
}

// AlreadyBroadcastError occurs when a value is broadcast twice under the same name
type AlreadyBroadcastError struct{ Name string }

// Error returns a textual representation of this AlreadyBroadcastError
func (e AlreadyBroadcastError) Error() string {
	return fmt.Sprintf("A value named %s has already been broadcast", e.Name)
}

// NotRetainedError occurs when a partition is requested from a RetentionStore which does not hold it
type NotRetainedError struct{ Key string }

// Error returns a textual representation of this NotRetainedError
func (e NotRetainedError) Error() string {
	return fmt.Sprintf("Partition %s is not retained", e.Key)
}

// IsMissingDataset returns true iff err is, or wraps, a MissingDatasetError
func IsMissingDataset(err error) bool {
	var target MissingDatasetError
	return stderrors.As(err, &target)
}

// IsNotRetained returns true iff err is, or wraps, a NotRetainedError
func IsNotRetained(err error) bool {
	var target NotRetainedError
	return stderrors.As(err, &target)
}

// IsConfiguration returns true iff err is, or wraps, a ConfigurationError
func IsConfiguration(err error) bool {
	var target ConfigurationError
	return stderrors.As(err, &target)
}
