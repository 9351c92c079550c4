package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrReportNotFound = fmt.Errorf("%w: report", ErrNotFound)
	ErrColumnNotFound = fmt.Errorf("%w: column", ErrNotFound)

	// Dataset errors
	ErrLoadFailed     = errors.New("dataset load failed")
	ErrSchemaMismatch = errors.New("row does not match dataset columns")

	// Evaluation errors
	ErrCheckFailed      = errors.New("check execution failed")
	ErrRuleEvaluation   = errors.New("rule evaluation failed")
	ErrNonComparable    = errors.New("value is not comparable with a numeric threshold")
	ErrInvalidThreshold = errors.New("invalid threshold configuration")
	ErrUnknownCondition = errors.New("unknown rule condition")
)

// Error constructors with context
func NewLoadError(source string, err error) error {
	return fmt.Errorf("%w from %s: %v", ErrLoadFailed, source, err)
}

func NewCheckError(check string, cause any) error {
	if err, ok := cause.(error); ok {
		return fmt.Errorf("%w: %s: %w", ErrCheckFailed, check, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrCheckFailed, check, cause)
}

func NewRuleError(rule string, err error) error {
	return fmt.Errorf("%w for %s: %w", ErrRuleEvaluation, rule, err)
}

func NewColumnNotFoundError(column string) error {
	return fmt.Errorf("%w: %q", ErrColumnNotFound, column)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsLoadError(err error) bool {
	return errors.Is(err, ErrLoadFailed)
}
